package dialog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Service sends one (message, context) pair to the dialog-decision engine
// and returns its (response, context) pair. A transport failure here is a
// hard error: without a response context there is no safe partial state.
type Service interface {
	Send(ctx context.Context, msg *Message) (*MessageResponse, error)
}

// Client is the HTTP client for the dialog engine message endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a dialog engine client for the given message endpoint.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		url:        url,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts the message to the engine. No retries; errors propagate to the
// caller and abort the turn.
func (c *Client) Send(ctx context.Context, msg *Message) (*MessageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build engine request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "engine request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("engine returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var out MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "failed to decode engine response")
	}
	if out.Context == nil {
		return nil, errors.New("engine response has no context")
	}
	return &out, nil
}

var _ Service = (*Client)(nil)
