package capabilities

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry manages model profiles across all providers
type Registry struct {
	providers map[string]*ProviderModels
	mu        sync.RWMutex
}

// NewRegistry creates a new model registry and loads embedded YAML files
func NewRegistry() (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderModels),
	}

	// Load embedded YAML files
	if err := r.loadProviderFile("local"); err != nil {
		return nil, fmt.Errorf("failed to load local model profiles: %w", err)
	}

	if err := r.loadProviderFile("lorem"); err != nil {
		return nil, fmt.Errorf("failed to load lorem model profiles: %w", err)
	}

	return r, nil
}

// loadProviderFile loads a provider's model profile YAML file
func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var providerModels ProviderModels
	if err := yaml.Unmarshal(data, &providerModels); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	r.mu.Lock()
	r.providers[provider] = &providerModels
	r.mu.Unlock()

	return nil
}

// GetModelProfile returns the profile for a specific model
func (r *Registry) GetModelProfile(provider, model string) (*ModelProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerModels, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	for i := range providerModels.Models {
		if providerModels.Models[i].ID == model {
			return &providerModels.Models[i], nil
		}
	}

	return nil, fmt.Errorf("unknown model %s for provider %s", model, provider)
}

// FindModel searches every provider for a model id. Model ids are unique
// across the catalog, so the first hit wins.
func (r *Registry) FindModel(model string) (string, *ModelProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for provider, providerModels := range r.providers {
		for i := range providerModels.Models {
			if providerModels.Models[i].ID == model {
				return provider, &providerModels.Models[i], nil
			}
		}
	}

	return "", nil, fmt.Errorf("unknown model: %s", model)
}

// ListProviderModels returns all models for a provider (ordered as defined in YAML)
func (r *Registry) ListProviderModels(provider string) ([]ModelProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerModels, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return providerModels.Models, nil
}

// GetAllProviders returns a list of all registered providers
func (r *Registry) GetAllProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.providers))
	for provider := range r.providers {
		providers = append(providers, provider)
	}
	return providers
}
