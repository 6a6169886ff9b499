package memory

import (
	"context"
	"fmt"
	"sync"

	"arbor/internal/domain"
	"arbor/internal/domain/models/chat"
	"arbor/internal/domain/repositories"
)

// MemorySettingsRepository implements the SettingsRepository interface in
// process memory. Used when no DATABASE_URL is configured and in tests;
// settings then last for the lifetime of the server.
type MemorySettingsRepository struct {
	mu   sync.RWMutex
	data map[string]chat.GenerationSettings
}

// NewSettingsRepository creates a new MemorySettingsRepository
func NewSettingsRepository() repositories.SettingsRepository {
	return &MemorySettingsRepository{
		data: make(map[string]chat.GenerationSettings),
	}
}

// Load retrieves the settings stored under key
func (r *MemorySettingsRepository) Load(ctx context.Context, key string) (*chat.GenerationSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	settings, ok := r.data[key]
	if !ok {
		return nil, fmt.Errorf("settings %q: %w", key, domain.ErrNotFound)
	}
	return &settings, nil
}

// Save creates or replaces the settings stored under key
func (r *MemorySettingsRepository) Save(ctx context.Context, key string, settings *chat.GenerationSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[key] = *settings
	return nil
}
