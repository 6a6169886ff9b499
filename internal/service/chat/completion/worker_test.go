package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"arbor/internal/domain"
	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
)

type sinkCall struct {
	conversationID string
	nodeID         string
	text           string
}

// recordingSink reports deliveries on a channel so tests can wait for the
// background goroutine.
type recordingSink struct {
	calls chan sinkCall
}

func newRecordingSink() *recordingSink {
	return &recordingSink{calls: make(chan sinkCall, 4)}
}

func (s *recordingSink) ReceiveAssistantReply(ctx context.Context, conversationID, forNodeID, text string) error {
	s.calls <- sinkCall{conversationID: conversationID, nodeID: forNodeID, text: text}
	return nil
}

func (s *recordingSink) wait(t *testing.T) sinkCall {
	t.Helper()
	select {
	case call := <-s.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply delivery")
		return sinkCall{}
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

func requestMessage(t *testing.T, req chatModels.CompletionRequested) *message.Message {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload)
}

func testRequest() chatModels.CompletionRequested {
	return chatModels.CompletionRequested{
		ConversationID: "conv-1",
		NodeID:         "node-1",
		Messages: []chatModels.PromptMessage{
			{Role: chatModels.MessageRoleSystem, Content: "You are a helpful assistant."},
			{Role: chatModels.MessageRoleUser, Content: "Hello"},
		},
		Settings: chatModels.GenerationSettings{
			Model:       "local/llama-3.1-8b-instruct",
			Temperature: 0.7,
			MaxTokens:   2048,
			TopP:        0.9,
		},
		RequestedAt: time.Now().UTC(),
	}
}

// TestHandleDeliversCompletion verifies the happy path: the provider gets
// the bare model name and its content reaches the sink under the captured
// conversation and node ids.
func TestHandleDeliversCompletion(t *testing.T) {
	provider := &stubProvider{content: "Hi! How can I help?"}
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: provider, model: "llama-3.1-8b-instruct"}, sink, time.Minute, testLogger())

	if err := w.handle(requestMessage(t, testRequest())); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	call := sink.wait(t)
	if call.conversationID != "conv-1" || call.nodeID != "node-1" {
		t.Errorf("reply routed wrong: %+v", call)
	}
	if call.text != "Hi! How can I help?" {
		t.Errorf("unexpected reply text: %q", call.text)
	}
	if provider.gotReq.Model != "llama-3.1-8b-instruct" {
		t.Errorf("provider must get the bare model name, got %q", provider.gotReq.Model)
	}
	if len(provider.gotReq.Messages) != 2 {
		t.Errorf("expected 2 prompt messages, got %d", len(provider.gotReq.Messages))
	}
}

// TestHandleProviderFailureDeliversPlaceholder verifies provider errors
// become inline error replies instead of lost messages.
func TestHandleProviderFailureDeliversPlaceholder(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: provider, model: "llama-3.1-8b-instruct"}, sink, time.Minute, testLogger())

	if err := w.handle(requestMessage(t, testRequest())); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	call := sink.wait(t)
	if !strings.HasPrefix(call.text, "Error:") {
		t.Errorf("expected error placeholder, got %q", call.text)
	}
	if !strings.Contains(call.text, "connection refused") {
		t.Errorf("placeholder should carry the failure detail, got %q", call.text)
	}
}

// TestHandleUnknownModelDeliversPlaceholder verifies resolution failures
// also land as error replies.
func TestHandleUnknownModelDeliversPlaceholder(t *testing.T) {
	sink := newRecordingSink()
	resolver := &stubResolver{err: domain.ErrValidation}
	w := NewWorker(resolver, sink, time.Minute, testLogger())

	if err := w.handle(requestMessage(t, testRequest())); err != nil {
		t.Fatalf("handle returned error: %v", err)
	}

	call := sink.wait(t)
	if !strings.HasPrefix(call.text, "Error:") {
		t.Errorf("expected error placeholder, got %q", call.text)
	}
}

// TestHandleMalformedPayload verifies poison messages are acked and
// dropped without touching the sink.
func TestHandleMalformedPayload(t *testing.T) {
	sink := newRecordingSink()
	w := NewWorker(&stubResolver{provider: &stubProvider{content: "x"}}, sink, time.Minute, testLogger())

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	if err := w.handle(msg); err != nil {
		t.Fatalf("malformed payload must be acked, got %v", err)
	}

	select {
	case call := <-sink.calls:
		t.Errorf("unexpected delivery: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}
