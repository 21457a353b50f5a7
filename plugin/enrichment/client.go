// Package enrichment extracts emotion and entity signals from user text via
// an OpenAI-compatible completion API.
//
// Extraction failures never abort a turn. Every failure is converted into a
// result map carrying an "error" field, which travels through the
// conversation context like any other enrichment result.
package enrichment

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Service extracts enrichment signals from raw user text.
type Service interface {
	// ExtractEmotion returns document emotion scores, or {"error": msg}.
	ExtractEmotion(ctx context.Context, text string) map[string]any

	// ExtractEntities returns a flat entity-type to text map, or {"error": msg}.
	ExtractEntities(ctx context.Context, text string) map[string]any
}

// Config holds configuration for the enrichment client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client implements Service over the chat-completion API with structured
// JSON outputs.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewClient creates a new enrichment client.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: 10 * time.Second,
	}
}

// ExtractEmotion scores the text on the five document emotions.
func (c *Client) ExtractEmotion(ctx context.Context, text string) map[string]any {
	content, err := c.complete(ctx, emotionSystemPrompt, text, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "document_emotion",
			Strict: true,
			Schema: emotionJSONSchema,
		},
	})
	if err != nil {
		slog.Warn("emotion extraction failed", "error", err, "text", truncateForLog(text, 30))
		return map[string]any{"error": err.Error()}
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		slog.Warn("emotion extraction returned malformed JSON", "error", err)
		return map[string]any{"error": err.Error()}
	}

	result := make(map[string]any, len(scores))
	for emotion, score := range scores {
		result[emotion] = score
	}
	return result
}

// ExtractEntities extracts named entities as a flat type-to-text map, the
// shape the dialog tree matches slot conditions against.
func (c *Client) ExtractEntities(ctx context.Context, text string) map[string]any {
	content, err := c.complete(ctx, entitySystemPrompt, text, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		slog.Warn("entity extraction failed", "error", err, "text", truncateForLog(text, 30))
		return map[string]any{"error": err.Error()}
	}

	var entities map[string]any
	if err := json.Unmarshal([]byte(content), &entities); err != nil {
		slog.Warn("entity extraction returned malformed JSON", "error", err)
		return map[string]any{"error": err.Error()}
	}
	return entities
}

func (c *Client) complete(ctx context.Context, system, user string, format *openai.ChatCompletionResponseFormat) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   200,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	slog.Debug("enrichment completion finished",
		"latency_ms", time.Since(start).Milliseconds(),
		"tokens", resp.Usage.TotalTokens)

	return resp.Choices[0].Message.Content, nil
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var _ Service = (*Client)(nil)
