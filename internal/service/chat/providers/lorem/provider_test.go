package lorem

import (
	"context"
	"strings"
	"testing"
	"time"

	"arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
)

// TestCompleteReturnsText verifies the fast model produces non-empty text
// without a long delay.
func TestCompleteReturnsText(t *testing.T) {
	p := NewProvider()

	start := time.Now()
	resp, err := p.Complete(context.Background(), &chatSvc.CompletionRequest{
		Model: "lorem-fast",
		Messages: []chat.PromptMessage{
			{Role: chat.MessageRoleUser, Content: "hello"},
		},
		Settings: chat.GenerationSettings{MaxTokens: 200},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if strings.TrimSpace(resp.Content) == "" {
		t.Error("expected non-empty content")
	}
	if resp.Model != "lorem-fast" {
		t.Errorf("model = %q, want %q", resp.Model, "lorem-fast")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("fast model took %v", elapsed)
	}
}

// TestCompleteShortOutputForTitleRequest verifies small max_tokens yields
// proportionally short text.
func TestCompleteShortOutputForTitleRequest(t *testing.T) {
	p := NewProvider()

	resp, err := p.Complete(context.Background(), &chatSvc.CompletionRequest{
		Model:    "lorem-fast",
		Settings: chat.GenerationSettings{MaxTokens: 20},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if words := len(strings.Fields(resp.Content)); words > 40 {
		t.Errorf("got %d words for a 20-token request", words)
	}
}

// TestCompleteCancelledContext verifies cancellation surfaces as an error
// instead of blocking for the full delay.
func TestCompleteCancelledContext(t *testing.T) {
	p := NewProvider()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Complete(ctx, &chatSvc.CompletionRequest{
		Model:    "lorem-slow",
		Settings: chat.GenerationSettings{MaxTokens: 100},
	})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestResponseDelay(t *testing.T) {
	tests := []struct {
		model string
		want  time.Duration
	}{
		{"lorem-slow", 5 * time.Second},
		{"lorem-fast", 50 * time.Millisecond},
		{"lorem-medium", 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := responseDelay(tt.model); got != tt.want {
				t.Errorf("responseDelay(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}
