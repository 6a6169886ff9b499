package title

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
)

type titleOutcome struct {
	conversationID string
	title          string
}

// recordingSink reports outcomes on a channel so tests can wait for the
// background goroutine.
type recordingSink struct {
	outcomes chan titleOutcome
}

func newRecordingSink() *recordingSink {
	return &recordingSink{outcomes: make(chan titleOutcome, 4)}
}

func (s *recordingSink) ResolveTitleRequest(ctx context.Context, conversationID, title string) error {
	s.outcomes <- titleOutcome{conversationID: conversationID, title: title}
	return nil
}

func (s *recordingSink) wait(t *testing.T) titleOutcome {
	t.Helper()
	select {
	case outcome := <-s.outcomes:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for title outcome")
		return titleOutcome{}
	}
}

type stubProvider struct {
	content string
	err     error
	gotReq  *chatSvc.CompletionRequest
}

func (p *stubProvider) Complete(ctx context.Context, req *chatSvc.CompletionRequest) (*chatSvc.CompletionResponse, error) {
	p.gotReq = req
	if p.err != nil {
		return nil, p.err
	}
	return &chatSvc.CompletionResponse{Content: p.content, Model: req.Model}, nil
}

func (p *stubProvider) Name() string { return "stub" }

type stubResolver struct {
	provider chatSvc.CompletionProvider
	model    string
	err      error
}

func (r *stubResolver) Resolve(model string) (chatSvc.CompletionProvider, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	return r.provider, r.model, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func titleMessage(t *testing.T, req chatModels.TitleRequested) *message.Message {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload)
}

func testTitleRequest() chatModels.TitleRequested {
	return chatModels.TitleRequested{
		ConversationID: "conv-1",
		Model:          "llama-3.1-8b-instruct",
		Context:        []string{"Plan a trip to Japan", "Sure, here is an itinerary."},
		RequestedAt:    time.Now().UTC(),
	}
}

// TestHandleAppliesCleanedTitle verifies the suggestion prompt shape and
// that quoted model output reaches the store stripped.
func TestHandleAppliesCleanedTitle(t *testing.T) {
	provider := &stubProvider{content: "\"Japan Trip Planning\"\n"}
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: provider, model: "llama-3.1-8b-instruct"}, sink, time.Minute, testLogger())

	if err := w.handle(titleMessage(t, testTitleRequest())); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	outcome := sink.wait(t)
	if outcome.conversationID != "conv-1" {
		t.Errorf("outcome routed wrong: %+v", outcome)
	}
	if outcome.title != "Japan Trip Planning" {
		t.Errorf("expected cleaned title, got %q", outcome.title)
	}

	req := provider.gotReq
	if req.Settings.MaxTokens != titleMaxTokens || req.Settings.Temperature != titleTemperature {
		t.Errorf("unexpected title settings: %+v", req.Settings)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected instruction plus exchange, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Role != chatModels.MessageRoleSystem {
		t.Errorf("expected system instruction first, got %q", req.Messages[0].Role)
	}
	if want := "Plan a trip to Japan Sure, here is an itinerary."; req.Messages[1].Content != want {
		t.Errorf("expected joined exchange %q, got %q", want, req.Messages[1].Content)
	}
}

// TestHandleFailureReportsBlankTitle verifies provider failures still reach
// the store so the pending flag clears.
func TestHandleFailureReportsBlankTitle(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: provider, model: "llama-3.1-8b-instruct"}, sink, time.Minute, testLogger())

	if err := w.handle(titleMessage(t, testTitleRequest())); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	outcome := sink.wait(t)
	if outcome.title != "" {
		t.Errorf("expected blank outcome on failure, got %q", outcome.title)
	}
}

// TestHandleMalformedPayload verifies poison messages are acked and dropped
// without touching the store.
func TestHandleMalformedPayload(t *testing.T) {
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: &stubProvider{content: "x"}}, sink, time.Minute, testLogger())

	if err := w.handle(message.NewMessage(watermill.NewUUID(), []byte("{nope"))); err != nil {
		t.Fatalf("malformed payload must be acked, got %v", err)
	}

	select {
	case outcome := <-sink.outcomes:
		t.Errorf("unexpected outcome: %+v", outcome)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestCleanTitle exercises quote stripping and whitespace collapsing.
func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "Weekend Cooking Ideas", want: "Weekend Cooking Ideas"},
		{name: "double quoted", raw: "\"Japan Trip\"", want: "Japan Trip"},
		{name: "single quoted", raw: "'Japan Trip'", want: "Japan Trip"},
		{name: "nested quotes", raw: "\"'Japan Trip'\"", want: "Japan Trip"},
		{name: "surrounding whitespace", raw: "  Japan Trip \n", want: "Japan Trip"},
		{name: "inner newline", raw: "Japan\nTrip", want: "Japan Trip"},
		{name: "collapsed spaces", raw: "Japan   Trip", want: "Japan Trip"},
		{name: "empty", raw: "", want: ""},
		{name: "only quotes", raw: "\"\"", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanTitle(tt.raw); got != tt.want {
				t.Errorf("cleanTitle(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
