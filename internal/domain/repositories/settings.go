package repositories

import (
	"context"

	"arbor/internal/domain/models/chat"
)

// DefaultSettingsKey is the identifier the single-user deployment stores
// its generation settings under.
const DefaultSettingsKey = "default"

// SettingsRepository defines the interface for persisted generation settings
type SettingsRepository interface {
	// Load retrieves the settings stored under key
	// Returns domain.ErrNotFound if nothing has been saved yet
	Load(ctx context.Context, key string) (*chat.GenerationSettings, error)

	// Save creates or replaces the settings stored under key
	Save(ctx context.Context, key string, settings *chat.GenerationSettings) error
}
