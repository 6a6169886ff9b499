// Package title names conversations in the background: one short completion
// over the first exchange, cleaned up and applied through the store.
package title

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/events"
)

// titleInstruction steers the model toward a bare, short answer.
const titleInstruction = "Generate a short, descriptive title (5 words or fewer) for a conversation " +
	"that starts with the following exchange. Respond with only the title."

const (
	titleMaxTokens   = 20
	titleTemperature = 0.3
	defaultTimeout   = 30 * time.Second
)

// ProviderResolver maps a model string to the provider serving it plus the
// bare model name the provider expects.
type ProviderResolver interface {
	Resolve(model string) (chatSvc.CompletionProvider, string, error)
}

// TitleSink records suggestion outcomes. A blank title marks a failed
// suggestion; the store clears its pending flag either way.
type TitleSink interface {
	ResolveTitleRequest(ctx context.Context, conversationID, title string) error
}

// Worker turns queued title requests into conversation names.
type Worker struct {
	registry ProviderResolver
	store    TitleSink
	timeout  time.Duration
	logger   *slog.Logger
}

// NewWorker creates a title worker. A non-positive timeout falls back to
// the default.
func NewWorker(registry ProviderResolver, store TitleSink, timeout time.Duration, logger *slog.Logger) *Worker {
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

// Register attaches the worker to the title request topic.
// Must be called before the router runs.
func (w *Worker) Register(router *events.Router) {
	router.AddHandler("title-worker", events.TopicTitleRequests, w.handle)
}

// handle acks immediately and suggests in the background so title traffic
// never delays completion traffic.
func (w *Worker) handle(msg *message.Message) error {
	var req chatModels.TitleRequested
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("dropping malformed title request",
			"message_id", msg.UUID, "error", err)
		return nil
	}
	go w.suggest(req)
	return nil
}

func (w *Worker) suggest(req chatModels.TitleRequested) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	title, err := w.generate(ctx, &req)
	if err != nil {
		w.logger.Warn("title generation failed",
			"conversation_id", req.ConversationID, "model", req.Model, "error", err)
		title = ""
	}

	// The outcome always reaches the store; a blank title releases the
	// pending flag for a later retry.
	if err := w.store.ResolveTitleRequest(context.Background(), req.ConversationID, title); err != nil {
		w.logger.Error("failed to record title outcome",
			"conversation_id", req.ConversationID, "error", err)
		return
	}
	if title != "" {
		w.logger.Info("title suggested", "conversation_id", req.ConversationID, "title", title)
	}
}

func (w *Worker) generate(ctx context.Context, req *chatModels.TitleRequested) (string, error) {
	provider, model, err := w.registry.Resolve(req.Model)
	if err != nil {
		return "", err
	}

	resp, err := provider.Complete(ctx, &chatSvc.CompletionRequest{
		Model: model,
		Messages: []chatModels.PromptMessage{
			{Role: chatModels.MessageRoleSystem, Content: titleInstruction},
			{Role: chatModels.MessageRoleUser, Content: strings.Join(req.Context, " ")},
		},
		Settings: chatModels.GenerationSettings{
			Model:       req.Model,
			Temperature: titleTemperature,
			MaxTokens:   titleMaxTokens,
			TopP:        1.0,
		},
	})
	if err != nil {
		return "", err
	}
	return cleanTitle(resp.Content), nil
}

// cleanTitle normalizes raw model output into a usable name: surrounding
// whitespace and matched quote pairs are stripped, inner whitespace
// collapses to single spaces.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for len(title) >= 2 {
		first, last := title[0], title[len(title)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			title = strings.TrimSpace(title[1 : len(title)-1])
			continue
		}
		break
	}
	return strings.Join(strings.Fields(title), " ")
}
