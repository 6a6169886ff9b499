package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation authored a node.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Version is one historical text payload of a node. Version 0 is the
// original; later entries are edits (user nodes) or regenerations
// (assistant nodes).
type Version struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Node represents a single turn in a conversation (user or assistant).
// Nodes form a tree via ParentID for branching conversations; alternate
// texts of the same turn live in Versions rather than as sibling nodes.
type Node struct {
	ID              string    `json:"id"`
	Role            Role      `json:"role"`
	Versions        []Version `json:"versions"`
	SelectedVersion int       `json:"selected_version"`
	ParentID        *string   `json:"parent_id,omitempty"`
	ChildIDs        []string  `json:"child_ids,omitempty"` // creation order
	CreatedAt       time.Time `json:"created_at"`
}

// NewNode creates a node with its original version selected.
// ParentID is fixed here and never reassigned afterwards, which is what
// keeps the parent chain acyclic.
func NewNode(role Role, text string, parentID *string) *Node {
	now := time.Now().UTC()
	return &Node{
		ID:              uuid.New().String(),
		Role:            role,
		Versions:        []Version{{Text: text, CreatedAt: now}},
		SelectedVersion: 0,
		ParentID:        parentID,
		CreatedAt:       now,
	}
}

// AddVersion appends a version and reselects it. Returns the new index.
// Versions are append-only; earlier entries are never modified or removed.
func (n *Node) AddVersion(text string) int {
	n.Versions = append(n.Versions, Version{Text: text, CreatedAt: time.Now().UTC()})
	n.SelectedVersion = len(n.Versions) - 1
	return n.SelectedVersion
}

// SelectedText returns the text of the currently selected version.
// An out-of-bounds selection index here means a mutation-path bug, not a
// user condition, so it panics rather than returning an error.
func (n *Node) SelectedText() string {
	if n.SelectedVersion < 0 || n.SelectedVersion >= len(n.Versions) {
		panic(fmt.Sprintf("node %s: selected version %d out of bounds (have %d versions)",
			n.ID, n.SelectedVersion, len(n.Versions)))
	}
	return n.Versions[n.SelectedVersion].Text
}

func (n *Node) clone() *Node {
	c := *n
	c.Versions = append([]Version(nil), n.Versions...)
	c.ChildIDs = append([]string(nil), n.ChildIDs...)
	c.ParentID = copyID(n.ParentID)
	return &c
}
