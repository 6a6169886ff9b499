package chat

import (
	"fmt"
	"sync"

	chatSvc "arbor/internal/domain/services/chat"
)

// ProviderRegistry routes model strings to completion providers.
// Uses ParseModel to extract the provider name, constructs instances
// through the factory on first use, and caches them for reuse.
type ProviderRegistry struct {
	factory *ProviderFactory
	cache   map[string]chatSvc.CompletionProvider
	mu      sync.RWMutex
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry(factory *ProviderFactory) *ProviderRegistry {
	return &ProviderRegistry{
		factory: factory,
		cache:   make(map[string]chatSvc.CompletionProvider),
	}
}

// Resolve parses a model string and returns the provider serving it along
// with the bare model identifier to put on the wire.
//
// Examples:
//   - "llama-3.1-8b-instruct" → local provider, "llama-3.1-8b-instruct"
//   - "lorem/lorem-fast" → lorem provider, "lorem-fast"
func (r *ProviderRegistry) Resolve(modelStr string) (chatSvc.CompletionProvider, string, error) {
	info, err := ParseModel(modelStr)
	if err != nil {
		return nil, "", err
	}

	provider, err := r.getProvider(info.Provider)
	if err != nil {
		return nil, "", err
	}

	return provider, info.Model, nil
}

// getProvider returns the cached provider instance, creating it on first use.
func (r *ProviderRegistry) getProvider(name string) (chatSvc.CompletionProvider, error) {
	// Fast path: check cache with read lock (optimistic path for cache hits)
	r.mu.RLock()
	if cached, exists := r.cache[name]; exists {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	// Slow path: create provider with write lock
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check cache after acquiring write lock
	// Another goroutine may have created the provider while we waited
	if cached, exists := r.cache[name]; exists {
		return cached, nil
	}

	provider, err := r.factory.GetProvider(name)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider '%s': %w", name, err)
	}

	r.cache[name] = provider
	return provider, nil
}

// Validate checks if the factory is properly configured.
// Should be called at startup to fail fast if misconfigured.
func (r *ProviderRegistry) Validate() error {
	if r.factory == nil {
		return fmt.Errorf("provider factory is not configured")
	}
	return nil
}
