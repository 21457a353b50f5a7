package dialog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "hi", msg.Input.Text)

		resp := map[string]any{
			"input":   map[string]any{"text": msg.Input.Text},
			"output":  map[string]any{"text": []string{"Hello! How can I help?"}},
			"context": map[string]any{"api": map[string]any{"RUN": "LPA"}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.Send(context.Background(), &Message{Input: Input{Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello! How can I help?"}, resp.Output.Text)
	require.NotNil(t, resp.Context)
	assert.Equal(t, "LPA", resp.Context.API.Run)
}

func TestClientSendEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Send(context.Background(), &Message{Input: Input{Text: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClientSendTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL)
	_, err := client.Send(context.Background(), &Message{Input: Input{Text: "hi"}})
	require.Error(t, err)
}

func TestClientSendMissingContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output": {"text": ["ok"]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Send(context.Background(), &Message{Input: Input{Text: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no context")
}
