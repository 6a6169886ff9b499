package chat

import (
	"context"

	"arbor/internal/domain/models/chat"
)

// CompletionProvider defines the interface completion backends implement.
// The local HTTP server and the lorem mock both satisfy it; the registry
// hands out instances by name.
type CompletionProvider interface {
	// Complete performs one non-streaming completion request.
	// Failures are classified: domain.ErrTransport for network and status
	// errors, domain.ErrFormat for unparseable response bodies.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "local", "lorem")
	Name() string
}

// CompletionRequest contains the parameters for a completion call.
type CompletionRequest struct {
	// Model is the bare model identifier, provider prefix already stripped
	Model string

	// Messages is the full prompt: system entry first, then the
	// windowed conversation history
	Messages []chat.PromptMessage

	// Settings carries the sampling parameters for this request
	Settings chat.GenerationSettings
}

// CompletionResponse contains the provider's reply.
type CompletionResponse struct {
	// Content is the assistant text extracted from the provider response
	Content string

	// Model echoes the model that served the request
	Model string
}
