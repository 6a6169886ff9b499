package handler

import (
	"log/slog"
	"net/http"

	chatSvc "arbor/internal/domain/services/chat"
	"arbor/internal/httputil"
)

// NodeHandler handles operations addressed to a single node. Nodes are only
// unique within a conversation, so every request body carries the
// conversation id.
type NodeHandler struct {
	store  chatSvc.ConversationStore
	logger *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(store chatSvc.ConversationStore, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		store:  store,
		logger: logger,
	}
}

// EditMessageResponse reports the version created by an edit.
type EditMessageResponse struct {
	NodeID       string `json:"node_id"`
	VersionIndex int    `json:"version_index"`
}

// EditMessage appends a version to a user message, rewinds the cursor, and
// queues a fresh completion
// POST /api/nodes/{id}/edit
func (h *NodeHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if nodeID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		Text           string `json:"text"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	idx, err := h.store.EditMessage(r.Context(), req.ConversationID, nodeID, req.Text)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, EditMessageResponse{NodeID: nodeID, VersionIndex: idx})
}

// SelectVersion changes which stored version of a node is active
// POST /api/nodes/{id}/select
func (h *NodeHandler) SelectVersion(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if nodeID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
		VersionIndex   int    `json:"version_index"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.SelectVersion(r.Context(), req.ConversationID, nodeID, req.VersionIndex); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegenerateReply queues another completion for the user message an
// assistant node answers; the result lands as a new version
// POST /api/nodes/{id}/regenerate
func (h *NodeHandler) RegenerateReply(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if nodeID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.RegenerateReply(r.Context(), req.ConversationID, nodeID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// SwitchToNode moves the cursor to any stored node; sending afterwards
// branches from there
// POST /api/nodes/{id}/switch
func (h *NodeHandler) SwitchToNode(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("id")
	if nodeID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.SwitchToNode(r.Context(), req.ConversationID, nodeID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
