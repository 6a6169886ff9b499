package handler

import (
	"log/slog"
	"net/http"

	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/httputil"
)

// SettingsHandler handles the stored default generation settings
type SettingsHandler struct {
	service chatSvc.SettingsService
	logger  *slog.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(service chatSvc.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

// GetDefaults retrieves the default generation settings
// GET /api/settings
func (h *SettingsHandler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	defaults, err := h.service.Defaults(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, defaults)
}

// UpdateDefaults replaces the default generation settings
// PUT /api/settings
func (h *SettingsHandler) UpdateDefaults(w http.ResponseWriter, r *http.Request) {
	var settings chatModels.GenerationSettings
	if err := httputil.ParseJSON(w, r, &settings); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateDefaults(r.Context(), &settings); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, settings)
}
