package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/capabilities"
	"arbor/internal/config"
	"arbor/internal/domain"
	chatModels "arbor/internal/domain/models/chat"
	"arbor/internal/domain/repositories"
	chatSvc "arbor/internal/domain/services/chat"
)

// SettingsManager implements the SettingsService interface.
// Persisted defaults win; the model catalog fills in when nothing has been
// saved yet, so a fresh install works without a PUT /api/settings.
type SettingsManager struct {
	repo    repositories.SettingsRepository
	catalog *capabilities.Registry
	config  *config.Config
	logger  *slog.Logger
}

// NewSettingsManager creates a new SettingsManager
func NewSettingsManager(
	repo repositories.SettingsRepository,
	catalog *capabilities.Registry,
	cfg *config.Config,
	logger *slog.Logger,
) chatSvc.SettingsService {
	return &SettingsManager{
		repo:    repo,
		catalog: catalog,
		config:  cfg,
		logger:  logger,
	}
}

// Defaults returns the current default generation settings
func (m *SettingsManager) Defaults(ctx context.Context) (chatModels.GenerationSettings, error) {
	stored, err := m.repo.Load(ctx, repositories.DefaultSettingsKey)
	if err == nil {
		return *stored, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return chatModels.GenerationSettings{}, err
	}

	return m.catalogDefaults(), nil
}

// UpdateDefaults validates and persists new default settings
func (m *SettingsManager) UpdateDefaults(ctx context.Context, settings *chatModels.GenerationSettings) error {
	if err := m.validateSettings(settings); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := m.repo.Save(ctx, repositories.DefaultSettingsKey, settings); err != nil {
		return err
	}

	m.logger.Info("default settings updated",
		"model", settings.Model,
		"max_tokens", settings.MaxTokens,
	)

	return nil
}

// catalogDefaults builds settings from the catalog profile of the
// configured default model, with a generic fallback for models the
// catalog does not know.
func (m *SettingsManager) catalogDefaults() chatModels.GenerationSettings {
	settings := chatModels.GenerationSettings{
		Model:        m.config.DefaultModel,
		SystemPrompt: "You are a helpful assistant.",
		Temperature:  0.7,
		MaxTokens:    2048,
		TopP:         0.9,
	}

	info, err := ParseModel(m.config.DefaultModel)
	if err != nil {
		return settings
	}

	profile, err := m.catalog.GetModelProfile(info.Provider, info.Model)
	if err != nil {
		m.logger.Debug("default model not in catalog, using generic defaults",
			"model", m.config.DefaultModel,
		)
		return settings
	}

	d := profile.Defaults
	settings.SystemPrompt = d.SystemPrompt
	settings.Temperature = d.Temperature
	settings.MaxTokens = d.MaxTokens
	settings.TopP = d.TopP
	settings.TopK = d.TopK
	settings.FrequencyPenalty = d.FrequencyPenalty
	settings.PresencePenalty = d.PresencePenalty
	return settings
}

// validateSettings checks the documented parameter ranges.
// Required guards the fields whose zero value is itself out of range;
// range rules skip zero values, which are in range everywhere else.
func (m *SettingsManager) validateSettings(settings *chatModels.GenerationSettings) error {
	return validation.ValidateStruct(settings,
		validation.Field(&settings.Model, validation.Required),
		validation.Field(&settings.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&settings.MaxTokens,
			validation.Required,
			validation.Min(100),
			validation.Max(8000),
		),
		validation.Field(&settings.TopP,
			validation.Required,
			validation.Min(0.1),
			validation.Max(1.0),
		),
		validation.Field(&settings.TopK, validation.Min(0), validation.Max(100)),
		validation.Field(&settings.FrequencyPenalty, validation.Min(-2.0), validation.Max(2.0)),
		validation.Field(&settings.PresencePenalty, validation.Min(-2.0), validation.Max(2.0)),
	)
}
