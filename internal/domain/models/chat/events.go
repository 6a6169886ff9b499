package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Store event type constants. These are the change notifications the store
// publishes after every mutation; the SSE layer forwards them verbatim so
// the UI can re-render from path/tree state.
const (
	EventConversationCreated = "conversation_created"
	EventConversationRenamed = "conversation_renamed"
	EventConversationDeleted = "conversation_deleted"
	EventNodeAppended        = "node_appended"
	EventVersionAdded        = "version_added"
	EventVersionSelected     = "version_selected"
	EventCursorMoved         = "cursor_moved"
	EventCompletionPending   = "completion_pending"
	EventCompletionResolved  = "completion_resolved"
)

// StoreEvent is the envelope published on the conversation event topic.
// Data holds one of the *Data payload structs below (or a raw map after a
// JSON round-trip through the bus).
type StoreEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
	Data           interface{} `json:"data,omitempty"`
}

// NewStoreEvent stamps an envelope with the current time.
func NewStoreEvent(eventType, conversationID string, data interface{}) *StoreEvent {
	return &StoreEvent{
		Type:           eventType,
		ConversationID: conversationID,
		OccurredAt:     time.Now().UTC(),
		Data:           data,
	}
}

// Event payloads

// ConversationCreatedData announces a fresh conversation.
type ConversationCreatedData struct {
	Name string `json:"name"`
}

// ConversationRenamedData carries the new name (user rename or generated title).
type ConversationRenamedData struct {
	Name string `json:"name"`
}

// NodeAppendedData announces a new node in the arena.
type NodeAppendedData struct {
	NodeID   string  `json:"node_id"`
	ParentID *string `json:"parent_id,omitempty"`
	Role     Role    `json:"role"`
	Text     string  `json:"text"`
	OnPath   bool    `json:"on_path"` // false for late replies landing on detached branches
}

// VersionAddedData announces an appended (and now selected) version.
type VersionAddedData struct {
	NodeID       string `json:"node_id"`
	VersionIndex int    `json:"version_index"`
	Text         string `json:"text"`
}

// VersionSelectedData announces a branch switch on one node.
type VersionSelectedData struct {
	NodeID       string `json:"node_id"`
	VersionIndex int    `json:"version_index"`
}

// CursorMovedData announces a cursor jump (edit rewind or tree-browser jump).
type CursorMovedData struct {
	NodeID string `json:"node_id"`
}

// CompletionPendingData marks a node as waiting for its assistant reply.
type CompletionPendingData struct {
	NodeID string `json:"node_id"` // the user node the reply will attach under
}

// CompletionResolvedData clears the pending state for a request.
type CompletionResolvedData struct {
	NodeID      string `json:"node_id"`       // the requesting user node
	ReplyNodeID string `json:"reply_node_id"` // the assistant node that received the text
	OnPath      bool   `json:"on_path"`
	IsError     bool   `json:"is_error"` // true when the reply text is an inline error placeholder
}

// Worker payloads. These travel on their own topics and are consumed by the
// completion and title workers, never by the UI stream.

// CompletionRequested asks the completion worker to fulfill one request.
// NodeID is the user node captured at request time; the eventual reply must
// resolve against it, not against whatever is current when the response
// arrives.
type CompletionRequested struct {
	ConversationID string             `json:"conversation_id"`
	NodeID         string             `json:"node_id"`
	Messages       []PromptMessage    `json:"messages"`
	Settings       GenerationSettings `json:"settings"`
	RequestedAt    time.Time          `json:"requested_at"`
}

// TitleRequested asks the title worker for a short conversation name.
// Context holds the first two active-path texts at trigger time.
type TitleRequested struct {
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Context        []string  `json:"context"`
	RequestedAt    time.Time `json:"requested_at"`
}

// FormatSSE renders a payload as a Server-Sent Event frame:
//
//	event: event_name
//	data: {"field": "value"}
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal SSE event data: %w", err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}
