package local

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"arbor/internal/domain"
	"arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
)

func testRequest() *chatSvc.CompletionRequest {
	return &chatSvc.CompletionRequest{
		Model: "llama-3.1-8b-instruct",
		Messages: []chat.PromptMessage{
			{Role: chat.MessageRoleSystem, Content: "You are a helpful assistant."},
			{Role: chat.MessageRoleUser, Content: "hello"},
		},
		Settings: chat.GenerationSettings{
			Temperature:      0.7,
			MaxTokens:        2048,
			TopP:             0.9,
			FrequencyPenalty: 0.1,
			PresencePenalty:  -0.1,
		},
	}
}

// TestCompleteResponseShapes verifies each supported response shape parses
// and that the OpenAI shape wins when several fields are present.
func TestCompleteResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "openai choices",
			body: `{"choices":[{"message":{"role":"assistant","content":"from choices"}}]}`,
			want: "from choices",
		},
		{
			name: "ollama response field",
			body: `{"model":"llama-3.1-8b-instruct","response":"from response"}`,
			want: "from response",
		},
		{
			name: "legacy completion field",
			body: `{"completion":"from completion"}`,
			want: "from completion",
		},
		{
			name: "bare text field",
			body: `{"text":"from text"}`,
			want: "from text",
		},
		{
			name: "choices take priority over response",
			body: `{"choices":[{"message":{"content":"winner"}}],"response":"loser"}`,
			want: "winner",
		},
		{
			name: "empty choices fall through to response",
			body: `{"choices":[],"response":"fallback"}`,
			want: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewProvider(server.URL)
			resp, err := p.Complete(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Complete failed: %v", err)
			}
			if resp.Content != tt.want {
				t.Errorf("content = %q, want %q", resp.Content, tt.want)
			}
		})
	}
}

// TestCompleteRequestBody verifies the request wire format, including the
// conditional top_k field.
func TestCompleteRequestBody(t *testing.T) {
	tests := []struct {
		name     string
		topK     int
		wantTopK bool
	}{
		{"top_k omitted when zero", 0, false},
		{"top_k omitted when negative", -1, false},
		{"top_k present when positive", 40, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured map[string]interface{}
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.Write([]byte(`{"response":"ok"}`))
			}))
			defer server.Close()

			req := testRequest()
			req.Settings.TopK = tt.topK

			p := NewProvider(server.URL)
			if _, err := p.Complete(context.Background(), req); err != nil {
				t.Fatalf("Complete failed: %v", err)
			}

			if captured["model"] != "llama-3.1-8b-instruct" {
				t.Errorf("model = %v", captured["model"])
			}
			if captured["stream"] != false {
				t.Errorf("stream = %v, want false", captured["stream"])
			}
			if captured["temperature"] != 0.7 {
				t.Errorf("temperature = %v, want 0.7", captured["temperature"])
			}
			if captured["max_tokens"] != float64(2048) {
				t.Errorf("max_tokens = %v, want 2048", captured["max_tokens"])
			}

			_, present := captured["top_k"]
			if present != tt.wantTopK {
				t.Errorf("top_k present = %v, want %v", present, tt.wantTopK)
			}
			if tt.wantTopK && captured["top_k"] != float64(tt.topK) {
				t.Errorf("top_k = %v, want %d", captured["top_k"], tt.topK)
			}

			messages, ok := captured["messages"].([]interface{})
			if !ok || len(messages) != 2 {
				t.Fatalf("messages = %v", captured["messages"])
			}
			first := messages[0].(map[string]interface{})
			if first["role"] != "system" {
				t.Errorf("first message role = %v, want system", first["role"])
			}
		})
	}
}

// TestCompleteTransportErrors verifies status and connection failures
// classify as ErrTransport.
func TestCompleteTransportErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer server.Close()

		p := NewProvider(server.URL)
		_, err := p.Complete(context.Background(), testRequest())
		if !errors.Is(err, domain.ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		p := NewProvider(server.URL)
		_, err := p.Complete(context.Background(), testRequest())
		if !errors.Is(err, domain.ErrTransport) {
			t.Errorf("expected ErrTransport, got %v", err)
		}
	})
}

// TestCompleteFormatErrors verifies unrecognized bodies classify as
// ErrFormat, not ErrTransport.
func TestCompleteFormatErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown shape", `{"usage":{"total_tokens":12}}`},
		{"not json", `<html>gateway error</html>`},
		{"choices without content", `{"choices":[{"message":{"role":"assistant"}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewProvider(server.URL)
			_, err := p.Complete(context.Background(), testRequest())
			if !errors.Is(err, domain.ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}
