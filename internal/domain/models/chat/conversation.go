package chat

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConversationName is the placeholder given to unnamed conversations.
// A name still containing it marks the conversation as "needs naming" for
// the title suggester.
const DefaultConversationName = "New Chat"

// Conversation owns one tree plus the settings snapshot used for its
// completion requests. Created empty (no root); destroyed only by explicit
// deletion. Branches detached by edits are never garbage-collected, so the
// tree browser can always reach them.
type Conversation struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	Tree      *Tree              `json:"tree"`
	Settings  GenerationSettings `json:"settings"`
}

// NewConversation creates an empty conversation. A blank name falls back to
// the placeholder so the title suggester can recognize it later.
func NewConversation(name string, settings GenerationSettings) *Conversation {
	if name == "" {
		name = DefaultConversationName
	}
	return &Conversation{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Tree:      NewTree(),
		Settings:  settings,
	}
}

// ConversationSummary is the sidebar listing shape.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	NodeCount int       `json:"node_count"`
}

// Summary returns the listing shape for this conversation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: c.CreatedAt,
		NodeCount: c.Tree.Len(),
	}
}
