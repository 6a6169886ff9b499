package lorem

import (
	"context"
	"fmt"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"arbor/internal/domain"
	chatSvc "arbor/internal/domain/services/chat"
)

// Provider is a mock completion provider that generates lorem ipsum text.
// Used for development and tests without a running model server.
type Provider struct {
	generator *loremgen.Lorem
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// Complete generates a lorem ipsum reply after a model-dependent delay.
// This simulates a blocking call to a real completion server, so timeout
// and late-reply behavior can be exercised end to end.
func (p *Provider) Complete(ctx context.Context, req *chatSvc.CompletionRequest) (*chatSvc.CompletionResponse, error) {
	select {
	case <-time.After(responseDelay(req.Model)):
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, ctx.Err())
	}

	maxTokens := req.Settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}

	// Estimate: 1 token ≈ 0.75 words
	text := p.generateTextWords(maxTokens * 3 / 4)

	return &chatSvc.CompletionResponse{
		Content: text,
		Model:   req.Model,
	}, nil
}

// responseDelay returns the simulated generation time based on the model name.
//   - lorem-slow: 5 seconds (exercises in-flight mutation scenarios)
//   - lorem-fast: near-instant
//   - default: 500ms
func responseDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 5 * time.Second
	}
	if strings.Contains(model, "fast") {
		return 50 * time.Millisecond
	}
	return 500 * time.Millisecond
}

// generateTextWords generates lorem ipsum text with approximately targetWords words.
func (p *Provider) generateTextWords(targetWords int) string {
	var sb strings.Builder
	wordCount := 0

	for wordCount < targetWords {
		// Generate sentence with 5-15 words
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")

		wordCount += len(strings.Fields(sentence))

		// Add paragraph break every ~50 words
		if wordCount%50 == 0 {
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(sb.String())
}
