package chat

import (
	"fmt"

	"arbor/internal/config"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/service/chat/providers/local"
	"arbor/internal/service/chat/providers/lorem"
)

// ProviderFactory creates completion provider instances
type ProviderFactory struct {
	config *config.Config
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config) *ProviderFactory {
	return &ProviderFactory{
		config: cfg,
	}
}

// GetProvider returns a provider instance for the given provider name
//
// Supported providers:
//   - "local" - the locally hosted completion server (LLM_BASE_URL)
//   - "lorem" - mock provider for development, no server required
func (f *ProviderFactory) GetProvider(providerName string) (chatSvc.CompletionProvider, error) {
	switch providerName {
	case "local":
		return f.createLocalProvider()

	case "lorem":
		return lorem.NewProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// createLocalProvider creates a provider for the configured completion server
func (f *ProviderFactory) createLocalProvider() (chatSvc.CompletionProvider, error) {
	if f.config.LLMBaseURL == "" {
		return nil, fmt.Errorf("LLM_BASE_URL environment variable not set")
	}
	return local.NewProvider(f.config.LLMBaseURL), nil
}
