package dialog

import "encoding/json"

// Input is the user utterance sent to the dialog engine.
type Input struct {
	Text string `json:"text"`
}

// Message is one (input, context) pair sent to the dialog engine.
// Text and From are channel shorthands; the orchestrator normalizes them
// into Input and User before processing.
type Message struct {
	Input   Input    `json:"input"`
	Context *Context `json:"context,omitempty"`
	User    string   `json:"user,omitempty"`
	From    string   `json:"from,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// UserID returns the user identifier, preferring User over From.
func (m *Message) UserID() string {
	if m.User != "" {
		return m.User
	}
	return m.From
}

// Output carries the content the engine wants delivered to the user, plus
// diagnostic fields the channel layer strips before replying.
type Output struct {
	Text         []string          `json:"text,omitempty"`
	NodesVisited []string          `json:"nodes_visited,omitempty"`
	LogMessages  []json.RawMessage `json:"log_messages,omitempty"`
}

// MessageResponse is the engine's reply. Context is the authoritative next
// conversation context.
type MessageResponse struct {
	Input    Input           `json:"input"`
	Output   Output          `json:"output"`
	Context  *Context        `json:"context"`
	Intents  json.RawMessage `json:"intents,omitempty"`
	Entities json.RawMessage `json:"entities,omitempty"`
}
