package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/capabilities"
	"arbor/internal/config"
	"arbor/internal/httputil"
)

// ModelsHandler serves the model catalog
type ModelsHandler struct {
	config   *config.Config
	logger   *slog.Logger
	registry *capabilities.Registry
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(cfg *config.Config, logger *slog.Logger, registry *capabilities.Registry) *ModelsHandler {
	return &ModelsHandler{
		config:   cfg,
		logger:   logger,
		registry: registry,
	}
}

// ProviderResponse represents a provider with its models
type ProviderResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Models []ModelResponse `json:"models"`
}

// ModelResponse represents one catalog model for the API response
type ModelResponse struct {
	ID            string                          `json:"id"`
	DisplayName   string                          `json:"display_name"`
	Description   string                          `json:"description,omitempty"`
	ContextWindow int                             `json:"context_window"`
	MaxOutput     int                             `json:"max_output"`
	Defaults      capabilities.GenerationDefaults `json:"defaults"`
}

// ListModels returns the catalog of available models per provider
// GET /api/models
//
// The local provider only shows up once an endpoint is configured; the lorem
// provider is always available.
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	var providers []ProviderResponse

	if h.config.LLMBaseURL != "" {
		if models, err := h.registry.ListProviderModels("local"); err == nil {
			providers = append(providers, convertProvider("local", "Local Server", models))
		}
	}

	if models, err := h.registry.ListProviderModels("lorem"); err == nil {
		providers = append(providers, convertProvider("lorem", "Lorem Ipsum", models))
	}

	response := map[string]interface{}{
		"providers": providers,
	}

	httputil.RespondJSON(w, http.StatusOK, response)
}

// convertProvider converts catalog entries to the API response format,
// preserving catalog order.
func convertProvider(id, name string, models []capabilities.ModelProfile) ProviderResponse {
	modelResponses := make([]ModelResponse, 0, len(models))
	for _, profile := range models {
		modelResponses = append(modelResponses, ModelResponse{
			ID:            profile.ID,
			DisplayName:   profile.DisplayName,
			Description:   profile.Description,
			ContextWindow: profile.ContextWindow,
			MaxOutput:     profile.MaxOutput,
			Defaults:      profile.Defaults,
		})
	}

	return ProviderResponse{
		ID:     id,
		Name:   name,
		Models: modelResponses,
	}
}
