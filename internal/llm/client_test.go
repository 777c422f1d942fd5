package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"homelab-agent/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatServer struct {
	mu       sync.Mutex
	requests []map[string]any
	replies  []string
	status   int
}

func (s *chatServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		s.mu.Lock()
		s.requests = append(s.requests, req)
		idx := len(s.requests) - 1
		s.mu.Unlock()

		if s.status != 0 {
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		reply := s.replies[len(s.replies)-1]
		if idx < len(s.replies) {
			reply = s.replies[idx]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}
}

func (s *chatServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func textReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(b)
}

func toolReply(name, args string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-2",
		"object": "chat.completion",
		"choices": []any{map[string]any{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": "",
				"tool_calls": []any{map[string]any{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
			"finish_reason": "tool_calls",
		}},
	})
	return string(b)
}

func setupProvider(t *testing.T, srv *chatServer, name string) *Provider {
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)
	return NewProvider(name, "test-key", ts.URL, "test-model", time.Second)
}

func TestClient_Complete(t *testing.T) {
	srv := &chatServer{replies: []string{textReply("Диагноз: сеть")}}
	client := NewWithProviders(nil, setupProvider(t, srv, "groq"))

	answer, err := client.Complete(context.Background(), "что случилось?")
	require.NoError(t, err)
	assert.Equal(t, "Диагноз: сеть", answer)

	require.Equal(t, 1, srv.count())
	req := srv.requests[0]
	assert.Equal(t, "test-model", req["model"])
	assert.EqualValues(t, maxTokens, req["max_tokens"])
	assert.NotContains(t, req, "tools")
}

func TestClient_FallsBackToNextProvider(t *testing.T) {
	broken := &chatServer{status: http.StatusInternalServerError}
	healthy := &chatServer{replies: []string{textReply("ok")}}
	client := NewWithProviders(nil, setupProvider(t, broken, "groq"), setupProvider(t, healthy, "openai"))

	answer, err := client.Complete(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
	assert.Equal(t, 1, broken.count())
	assert.Equal(t, 1, healthy.count())
}

func TestClient_AllProvidersFail(t *testing.T) {
	broken := &chatServer{status: http.StatusInternalServerError}
	client := NewWithProviders(nil, setupProvider(t, broken, "groq"))

	_, err := client.Complete(context.Background(), "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groq")
}

func TestClient_NoProviders(t *testing.T) {
	client := New(Config{}, nil)

	assert.False(t, client.Available())
	_, err := client.Complete(context.Background(), "ping")
	assert.ErrorIs(t, err, service.ErrModelUnavailable)
}

func TestNew_ProviderOrder(t *testing.T) {
	client := New(Config{GroqAPIKey: "g", OpenAIAPIKey: "o"}, nil)

	require.Len(t, client.providers, 2)
	assert.Equal(t, "groq", client.providers[0].Name)
	assert.Equal(t, DefaultGroqModel, client.providers[0].Model)
	assert.Equal(t, "openai", client.providers[1].Name)
	assert.Equal(t, DefaultOpenAIModel, client.providers[1].Model)
}
