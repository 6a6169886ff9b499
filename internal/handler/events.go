package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/events"
	"arbor/internal/handler/sse"
	"arbor/internal/httputil"
)

// EventSource opens per-client subscriptions to the store event stream.
// The subscription channel closes when ctx is cancelled.
type EventSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// EventsHandler streams store events to SSE clients
type EventsHandler struct {
	store  chatSvc.ConversationStore
	source EventSource
	config *sse.Config
	logger *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(store chatSvc.ConversationStore, source EventSource, config *sse.Config, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		store:  store,
		source: source,
		config: config,
		logger: logger,
	}
}

// StreamEvents streams one conversation's store events via Server-Sent Events
// GET /api/conversations/{id}/events
//
// Each client gets its own bus subscription and a buffered frame channel.
// The connection goroutine is the only writer to the response; the pump
// and the keep-alive strategy both enqueue frames onto the channel, and a
// client that stops reading has frames dropped rather than stalling the bus.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	// 404 before committing to the stream
	if _, err := h.store.GetConversation(r.Context(), conversationID); err != nil {
		handleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	messages, err := h.source.Subscribe(ctx, events.TopicConversationEvents)
	if err != nil {
		h.logger.Error("event subscription failed",
			"conversation_id", conversationID,
			"error", err,
		)
		httputil.RespondError(w, http.StatusInternalServerError, "Could not subscribe to events")
		return
	}

	clientID := uuid.New().String()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Info("SSE stream established",
		"conversation_id", conversationID,
		"client_id", clientID,
	)

	frames := make(chan string, h.config.ClientBuffer)
	go h.pump(conversationID, clientID, messages, frames)

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	defer keepAlive.Stop()
	keepAlive.Start(sse.NewFrameWriter(frames), h.logger)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE stream closed",
				"conversation_id", conversationID,
				"client_id", clientID,
			)
			return

		case frame := <-frames:
			if _, err := fmt.Fprint(w, frame); err != nil {
				h.logger.Info("client disconnected during event write",
					"conversation_id", conversationID,
					"client_id", clientID,
					"error", err,
				)
				return
			}
			flusher.Flush()
		}
	}
}

// pump moves store events from the bus subscription onto the client's frame
// channel, keeping only events for this conversation. Messages are acked
// unconditionally so one slow stream never stalls the shared subscription.
func (h *EventsHandler) pump(conversationID, clientID string, messages <-chan *message.Message, frames chan<- string) {
	for msg := range messages {
		var event chatModels.StoreEvent
		err := json.Unmarshal(msg.Payload, &event)
		msg.Ack()
		if err != nil {
			h.logger.Error("malformed store event",
				"client_id", clientID,
				"error", err,
			)
			continue
		}

		if event.ConversationID != conversationID {
			continue
		}

		frame, err := chatModels.FormatSSE(event.Type, &event)
		if err != nil {
			h.logger.Error("store event not serializable",
				"client_id", clientID,
				"event_type", event.Type,
				"error", err,
			)
			continue
		}

		select {
		case frames <- frame:
		default:
			h.logger.Debug("dropping event for slow client",
				"conversation_id", conversationID,
				"client_id", clientID,
				"event_type", event.Type,
			)
		}
	}
}
