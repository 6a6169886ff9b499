package chat

import (
	"context"

	"arbor/internal/domain/models/chat"
)

// SettingsService manages the persisted default generation settings that
// seed new conversations.
type SettingsService interface {
	// Defaults returns the current default settings: the persisted blob if
	// one exists, otherwise the model catalog defaults for the configured
	// default model
	Defaults(ctx context.Context) (chat.GenerationSettings, error)

	// UpdateDefaults validates and persists new default settings
	UpdateDefaults(ctx context.Context, settings *chat.GenerationSettings) error
}
