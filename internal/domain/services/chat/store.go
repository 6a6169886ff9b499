package chat

import (
	"context"
	"time"

	"arbor/internal/domain/models/chat"
)

// ConversationStore defines the business logic for branching conversations.
// Mutations on the same conversation serialize; different conversations run
// in parallel. Every operation validates its input before touching state.
type ConversationStore interface {
	// CreateConversation creates an empty conversation
	// Blank names default to "New Chat"; settings snapshot the current defaults
	CreateConversation(ctx context.Context, req *CreateConversationRequest) (*ConversationDetail, error)

	// ListConversations returns summaries of every live conversation,
	// newest first
	ListConversations(ctx context.Context) ([]chat.ConversationSummary, error)

	// GetConversation returns a conversation's active path and settings
	GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error)

	// GetTree returns a deep copy of the full node arena for the tree browser,
	// including branches detached from the active path
	GetTree(ctx context.Context, conversationID string) (*chat.Tree, error)

	// RenameConversation replaces the conversation name
	RenameConversation(ctx context.Context, conversationID, name string) error

	// DeleteConversation removes the conversation and all its nodes
	// Replies still in flight for it are discarded on arrival
	DeleteConversation(ctx context.Context, conversationID string) error

	// SendUserMessage appends a user node at the cursor and requests a
	// completion for it. Returns the new node's id immediately; the reply
	// arrives later through ReceiveAssistantReply.
	SendUserMessage(ctx context.Context, conversationID, text string) (string, error)

	// ReceiveAssistantReply attaches reply text to the assistant child of
	// forNodeID, creating the child if this is the first reply and adding a
	// version otherwise. The cursor advances only if forNodeID is still
	// current. Unknown conversations are discarded without error.
	ReceiveAssistantReply(ctx context.Context, conversationID, forNodeID, text string) error

	// EditMessage appends a version to a user node, rewinds the cursor to it,
	// and requests a fresh completion. Returns the new version index.
	EditMessage(ctx context.Context, conversationID, nodeID, text string) (int, error)

	// SwitchToNode moves the cursor to any stored node
	// Sending afterwards branches from there
	SwitchToNode(ctx context.Context, conversationID, nodeID string) error

	// RegenerateReply requests another completion for the user message an
	// assistant node answers; the result lands as a new version of that node
	RegenerateReply(ctx context.Context, conversationID, assistantNodeID string) error

	// SelectVersion changes which stored version of a node is active
	SelectVersion(ctx context.Context, conversationID, nodeID string, versionIndex int) error

	// ResolveTitleRequest records the outcome of a background title
	// suggestion. A non-blank title applies only while the conversation
	// still carries its placeholder name; blank marks the suggestion
	// failed. Either way the conversation may request a title again later.
	ResolveTitleRequest(ctx context.Context, conversationID, title string) error

	// UpdateConversationSettings replaces the per-conversation generation
	// settings after validation
	UpdateConversationSettings(ctx context.Context, conversationID string, settings *chat.GenerationSettings) error
}

// CreateConversationRequest is the DTO for creating a conversation
type CreateConversationRequest struct {
	Name string `json:"name"`
}

// ConversationDetail is the client-facing view of one conversation:
// identity, settings, and the resolved active path.
type ConversationDetail struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	CreatedAt time.Time               `json:"created_at"`
	Settings  chat.GenerationSettings `json:"settings"`
	Path      []PathNode              `json:"path"`
}

// PathNode is one active-path entry with the metadata clients need to
// render version switchers and branch indicators.
type PathNode struct {
	ID              string    `json:"id"`
	Role            chat.Role `json:"role"`
	Text            string    `json:"text"`
	VersionCount    int       `json:"version_count"`
	SelectedVersion int       `json:"selected_version"`
	SiblingIndex    int       `json:"sibling_index"`
	SiblingCount    int       `json:"sibling_count"`
}
