package chat

import (
	"fmt"
	"log/slog"
	"time"

	"arbor/internal/capabilities"
	"arbor/internal/config"
	"arbor/internal/domain/repositories"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/events"
	"arbor/internal/service/chat/completion"
	"arbor/internal/service/chat/conversation"
	"arbor/internal/service/chat/store"
	"arbor/internal/service/chat/title"
)

// SetupProviders initializes the provider factory and registry for model
// routing.
func SetupProviders(cfg *config.Config, logger *slog.Logger) (*ProviderRegistry, error) {
	providerFactory := NewProviderFactory(cfg)
	registry := NewProviderRegistry(providerFactory)

	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("provider registry validation failed: %w", err)
	}

	if cfg.LLMBaseURL != "" {
		logger.Info("provider available", "name", "local", "endpoint", cfg.LLMBaseURL)
	} else {
		logger.Warn("LLM_BASE_URL not set, local models are not available")
	}
	logger.Info("provider available", "name", "lorem", "models", "lorem-*")

	return registry, nil
}

// Services holds the chat services the handlers depend on.
type Services struct {
	Store    chatSvc.ConversationStore
	Settings chatSvc.SettingsService
}

// SetupServices wires the settings manager, the conversation store, and the
// background workers. The workers attach to the router here; the router
// must not be running yet.
func SetupServices(
	settingsRepo repositories.SettingsRepository,
	providerRegistry *ProviderRegistry,
	router *events.Router,
	capabilityRegistry *capabilities.Registry,
	cfg *config.Config,
	logger *slog.Logger,
) (*Services, error) {
	settingsService := NewSettingsManager(settingsRepo, capabilityRegistry, cfg, logger)

	messageBuilder := conversation.NewMessageBuilder(logger)

	conversationStore := store.NewService(settingsService, messageBuilder, router, logger)

	completionTimeout := time.Duration(cfg.CompletionTimeoutSeconds) * time.Second
	completion.NewWorker(providerRegistry, conversationStore, completionTimeout, logger).Register(router)

	// Title suggestions keep the worker's own shorter default timeout.
	title.NewWorker(providerRegistry, conversationStore, 0, logger).Register(router)

	return &Services{
		Store:    conversationStore,
		Settings: settingsService,
	}, nil
}
