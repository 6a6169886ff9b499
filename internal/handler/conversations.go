package handler

import (
	"log/slog"
	"net/http"

	chatModels "arbor/internal/domain/models/chat"
	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/httputil"
)

// ConversationHandler handles conversation HTTP requests.
// Handlers only talk to services; all validation and tree logic lives in the
// store.
type ConversationHandler struct {
	store  chatSvc.ConversationStore
	logger *slog.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(store chatSvc.ConversationStore, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:  store,
		logger: logger,
	}
}

// CreateConversation creates a new conversation
// POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req chatSvc.CreateConversationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	detail, err := h.store.CreateConversation(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, detail)
}

// ListConversations retrieves all conversations, newest first
// GET /api/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListConversations(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, summaries)
}

// GetConversation retrieves a conversation's active path and settings
// GET /api/conversations/{id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	detail, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, detail)
}

// RenameConversation replaces a conversation's name
// PATCH /api/conversations/{id}
func (h *ConversationHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.RenameConversation(r.Context(), conversationID, req.Name); err != nil {
		handleError(w, err)
		return
	}

	detail, err := h.store.GetConversation(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, detail)
}

// DeleteConversation removes a conversation and all its nodes
// DELETE /api/conversations/{id}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	if err := h.store.DeleteConversation(r.Context(), conversationID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTree retrieves the full node arena for the tree browser, including
// branches detached from the active path
// GET /api/conversations/{id}/tree
func (h *ConversationHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	tree, err := h.store.GetTree(r.Context(), conversationID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// SendMessageResponse acknowledges an accepted user message; the reply
// arrives later on the event stream.
type SendMessageResponse struct {
	NodeID string `json:"node_id"`
}

// SendMessage appends a user message and queues its completion
// POST /api/conversations/{id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	nodeID, err := h.store.SendUserMessage(r.Context(), conversationID, req.Text)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, SendMessageResponse{NodeID: nodeID})
}

// UpdateSettings replaces the conversation's generation settings
// PATCH /api/conversations/{id}/settings
func (h *ConversationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation ID is required")
		return
	}

	var settings chatModels.GenerationSettings
	if err := httputil.ParseJSON(w, r, &settings); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.UpdateConversationSettings(r.Context(), conversationID, &settings); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
