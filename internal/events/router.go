package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Router owns the in-process pub/sub channel and the watermill handler
// router. The store publishes through it, the completion and title workers
// attach as handlers, and SSE streams subscribe directly via Subscribe.
//
// Publishing must never block a store mutation, so the channel is buffered
// and publishes do not wait for acks. Handlers that do slow work (provider
// calls) spawn a goroutine per message and ack immediately.
type Router struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

func NewRouter(logger *slog.Logger) (*Router, error) {
	adapter := NewSlogAdapter(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, adapter)

	router, err := message.NewRouter(message.RouterConfig{}, adapter)
	if err != nil {
		return nil, fmt.Errorf("create event router: %w", err)
	}

	return &Router{
		logger:     adapter,
		Publisher:  pubSub,
		Subscriber: pubSub,
		router:     router,
	}, nil
}

// Publish marshals payload to JSON and publishes it on topic.
// Topics with no subscriber drop the message, which is the wanted behavior
// for conversation.events when no SSE client is attached.
func (r *Router) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return r.Publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// AddHandler registers a consume-only handler for topic.
// Must be called before Run.
func (r *Router) AddHandler(name, topic string, fn message.NoPublishHandlerFunc) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, fn)
}

// Subscribe opens a raw subscription for topic. The channel closes when ctx
// is cancelled. Used by SSE streams, which come and go per client.
func (r *Router) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return r.Subscriber.Subscribe(ctx, topic)
}

// Run starts the handler router and blocks until ctx is cancelled.
// Callers should wait on Running before publishing anything a handler must
// see; gochannel subscriptions only receive messages published after them.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running closes once all handlers are subscribed and consuming.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	if err := r.Publisher.Close(); err != nil {
		r.logger.Error("failed to close pubsub", err, nil)
	}
	return r.router.Close()
}
