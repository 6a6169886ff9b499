package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"arbor/internal/domain"
	"arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
)

// Provider talks to a locally hosted completion server over plain HTTP.
// The server is expected to accept an OpenAI-ish non-streaming POST; the
// response may come back in any of several shapes (llama.cpp, Ollama and
// friends disagree), so extraction tries each known field in order.
type Provider struct {
	endpoint string
	client   *http.Client
}

// NewProvider creates a provider for the completion endpoint at endpoint.
// The URL is used as-is; it must be the full path, not a server root.
func NewProvider(endpoint string) *Provider {
	return &Provider{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// completionPayload is the request body. top_k is the one conditional
// field: local servers reject 0, so it is omitted unless positive.
type completionPayload struct {
	Model            string               `json:"model"`
	Messages         []chat.PromptMessage `json:"messages"`
	Temperature      float64              `json:"temperature"`
	MaxTokens        int                  `json:"max_tokens"`
	TopP             float64              `json:"top_p"`
	TopK             int                  `json:"top_k,omitempty"`
	FrequencyPenalty float64              `json:"frequency_penalty"`
	PresencePenalty  float64              `json:"presence_penalty"`
	Stream           bool                 `json:"stream"`
}

// completionResult captures every response shape the provider understands.
// Pointer fields distinguish "absent" from "present but empty".
type completionResult struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Response   *string `json:"response"`
	Completion *string `json:"completion"`
	Text       *string `json:"text"`
}

// Complete performs one blocking completion round-trip.
// Network, encoding and status failures wrap domain.ErrTransport;
// unparseable bodies wrap domain.ErrFormat. Callers turn both into inline
// error replies.
func (p *Provider) Complete(ctx context.Context, req *chatSvc.CompletionRequest) (*chatSvc.CompletionResponse, error) {
	payload := completionPayload{
		Model:            req.Model,
		Messages:         req.Messages,
		Temperature:      req.Settings.Temperature,
		MaxTokens:        req.Settings.MaxTokens,
		TopP:             req.Settings.TopP,
		FrequencyPenalty: req.Settings.FrequencyPenalty,
		PresencePenalty:  req.Settings.PresencePenalty,
		Stream:           false,
	}
	if req.Settings.TopK > 0 {
		payload.TopK = req.Settings.TopK
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: completion server returned %s", domain.ErrTransport, resp.Status)
	}

	var result completionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrFormat, err)
	}

	content, ok := extractContent(&result)
	if !ok {
		return nil, fmt.Errorf("%w: response has no recognized content field", domain.ErrFormat)
	}

	return &chatSvc.CompletionResponse{
		Content: content,
		Model:   req.Model,
	}, nil
}

// extractContent tries each known response shape in priority order:
// OpenAI-style choices, then response, completion, text.
func extractContent(result *completionResult) (string, bool) {
	if len(result.Choices) > 0 && result.Choices[0].Message.Content != nil {
		return *result.Choices[0].Message.Content, true
	}
	if result.Response != nil {
		return *result.Response, true
	}
	if result.Completion != nil {
		return *result.Completion, true
	}
	if result.Text != nil {
		return *result.Text, true
	}
	return "", false
}
