// Package completion consumes completion requests from the event bus, runs
// them against the provider that serves the requested model, and feeds the
// results back into the conversation store.
package completion

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"arbor/internal/config"
	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/events"
)

const defaultTimeout = 5 * time.Minute

// ProviderResolver maps a model string to the provider serving it plus the
// bare model name the provider expects.
type ProviderResolver interface {
	Resolve(model string) (chatSvc.CompletionProvider, string, error)
}

// ReplySink receives completion outcomes. The conversation store implements
// it; the indirection keeps this package off the store's dependencies.
type ReplySink interface {
	ReceiveAssistantReply(ctx context.Context, conversationID, forNodeID, text string) error
}

// Worker turns queued completion requests into assistant replies.
type Worker struct {
	registry ProviderResolver
	store    ReplySink
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWorker creates a completion worker. A non-positive timeout falls back
// to the default.
func NewWorker(registry ProviderResolver, store ReplySink, timeout time.Duration, logger *slog.Logger) *Worker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Worker{
		registry: registry,
		store:    store,
		timeout:  timeout,
		logger:   logger,
	}
}

// Register attaches the worker to the completion request topic.
// Must be called before the router runs.
func (w *Worker) Register(router *events.Router) {
	router.AddHandler("completion-worker", events.TopicCompletionRequests, w.handle)
}

// handle acks immediately and completes in the background, one goroutine
// per request, so a slow model never serializes the queue behind it.
func (w *Worker) handle(msg *message.Message) error {
	var req chatModels.CompletionRequested
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("dropping malformed completion request",
			"message_id", msg.UUID, "error", err)
		return nil
	}
	go w.complete(req)
	return nil
}

func (w *Worker) complete(req chatModels.CompletionRequested) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	text := w.generate(ctx, &req)

	// Delivery gets a fresh context: even a timed-out completion must store
	// its error placeholder.
	if err := w.store.ReceiveAssistantReply(context.Background(), req.ConversationID, req.NodeID, text); err != nil {
		w.logger.Error("failed to deliver completion",
			"conversation_id", req.ConversationID, "node_id", req.NodeID, "error", err)
		return
	}
	w.logger.Info("completion finished",
		"conversation_id", req.ConversationID,
		"node_id", req.NodeID,
		"model", req.Settings.Model,
		"duration_ms", time.Since(start).Milliseconds())
}

// generate resolves the provider and runs the completion. Failures come
// back as inline error placeholders rather than errors: the reply slot is
// always filled so the client sees what happened.
func (w *Worker) generate(ctx context.Context, req *chatModels.CompletionRequested) string {
	provider, model, err := w.registry.Resolve(req.Settings.Model)
	if err != nil {
		w.logger.Warn("no provider for model", "model", req.Settings.Model, "error", err)
		return errorReply(err)
	}

	resp, err := provider.Complete(ctx, &chatSvc.CompletionRequest{
		Model:    model,
		Messages: req.Messages,
		Settings: req.Settings,
	})
	if err != nil {
		w.logger.Warn("completion failed",
			"provider", provider.Name(), "model", req.Settings.Model, "error", err)
		return errorReply(err)
	}
	return resp.Content
}

func errorReply(err error) string {
	return config.ErrorReplyPrefix + " " + err.Error()
}
