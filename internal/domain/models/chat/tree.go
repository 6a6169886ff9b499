package chat

import (
	"fmt"

	"arbor/internal/domain"
)

// Tree is the node arena for one conversation. All ordering is derived from
// ParentID/ChildIDs links and timestamps; map iteration order is never
// meaningful. CurrentID is the cursor: the tip of the active transcript.
//
// Trees are not safe for concurrent use; the owning store serializes
// mutations per conversation.
type Tree struct {
	Nodes     map[string]*Node `json:"nodes"`
	RootID    *string          `json:"root_id,omitempty"`
	CurrentID *string          `json:"current_id,omitempty"`
}

// NewTree creates an empty tree (no root, no cursor).
func NewTree() *Tree {
	return &Tree{Nodes: make(map[string]*Node)}
}

// Node returns the node for the given id.
func (t *Tree) Node(nodeID string) (*Node, error) {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	return node, nil
}

// AppendNode creates a node under the current tip (or as the root of an
// empty tree) and advances the cursor to it. Returns the new node id.
func (t *Tree) AppendNode(role Role, text string) string {
	node := t.appendChild(t.CurrentID, role, text)
	t.setCursor(node.ID)
	return node.ID
}

// AppendChild creates a node under an explicit parent without moving the
// cursor. Reply fulfillment uses this so that a late reply attaches to the
// node captured at request time, never to whatever is current now.
func (t *Tree) AppendChild(parentID string, role Role, text string) (string, error) {
	if _, ok := t.Nodes[parentID]; !ok {
		return "", fmt.Errorf("parent node %s: %w", parentID, domain.ErrNotFound)
	}
	node := t.appendChild(&parentID, role, text)
	return node.ID, nil
}

// appendChild links a new node into the arena. A nil parent makes it the
// root, which is only legal on an empty tree; violating that is a
// programming error.
func (t *Tree) appendChild(parentID *string, role Role, text string) *Node {
	var parent *Node
	if parentID != nil {
		parent = t.Nodes[*parentID]
		if parent == nil {
			panic(fmt.Sprintf("append under missing node %s", *parentID))
		}
	} else if t.RootID != nil {
		panic("append with nil parent on a non-empty tree")
	}

	node := NewNode(role, text, copyID(parentID))
	t.Nodes[node.ID] = node

	if parent != nil {
		parent.ChildIDs = append(parent.ChildIDs, node.ID)
	} else {
		t.RootID = copyID(&node.ID)
	}
	return node
}

// AddVersion appends a version to the node and reselects it. The cursor is
// not touched. Returns the new version index.
func (t *Tree) AddVersion(nodeID, text string) (int, error) {
	node, err := t.Node(nodeID)
	if err != nil {
		return 0, err
	}
	return node.AddVersion(text), nil
}

// SelectVersion switches a node's selected version after bounds-checking.
// The cursor is not touched, so selecting versions of detached nodes is
// allowed and only affects the active path when the node is on it.
func (t *Tree) SelectVersion(nodeID string, versionIndex int) error {
	node, err := t.Node(nodeID)
	if err != nil {
		return err
	}
	if versionIndex < 0 || versionIndex >= len(node.Versions) {
		return fmt.Errorf("version index %d out of range [0, %d): %w",
			versionIndex, len(node.Versions), domain.ErrValidation)
	}
	node.SelectedVersion = versionIndex
	return nil
}

// EditUserMessage appends a version to a user node and rewinds the cursor to
// that node, dropping everything downstream off the active path (the nodes
// stay stored for tree browsing). Validation happens before any mutation, so
// the version append and the cursor rewind are all-or-nothing.
func (t *Tree) EditUserMessage(nodeID, text string) (int, error) {
	node, err := t.Node(nodeID)
	if err != nil {
		return 0, err
	}
	if node.Role != RoleUser {
		return 0, fmt.Errorf("node %s is not a user message: %w", nodeID, domain.ErrValidation)
	}
	idx := node.AddVersion(text)
	t.setCursor(nodeID)
	return idx, nil
}

// SetCurrent moves the cursor to an existing node. The active path
// recomputes from there; no node links change.
func (t *Tree) SetCurrent(nodeID string) error {
	if _, ok := t.Nodes[nodeID]; !ok {
		return fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	t.setCursor(nodeID)
	return nil
}

// AssistantChild returns the assistant reply node directly under parentID,
// or nil when none exists yet. Regenerations are versions of this one node,
// so a parent has at most one assistant child in practice; if jumps and
// branching ever produce several, the earliest-created wins.
func (t *Tree) AssistantChild(parentID string) *Node {
	parent, ok := t.Nodes[parentID]
	if !ok {
		return nil
	}
	for _, childID := range parent.ChildIDs {
		if child, ok := t.Nodes[childID]; ok && child.Role == RoleAssistant {
			return child
		}
	}
	return nil
}

// IsCurrent reports whether nodeID is the cursor position.
func (t *Tree) IsCurrent(nodeID string) bool {
	return t.CurrentID != nil && *t.CurrentID == nodeID
}

// Clone returns a deep copy. Handed to readers so they never hold live
// pointers into a tree that keeps mutating under the store lock.
func (t *Tree) Clone() *Tree {
	clone := &Tree{
		Nodes:     make(map[string]*Node, len(t.Nodes)),
		RootID:    copyID(t.RootID),
		CurrentID: copyID(t.CurrentID),
	}
	for id, node := range t.Nodes {
		clone.Nodes[id] = node.clone()
	}
	return clone
}

// Len returns the number of stored nodes, detached branches included.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

func (t *Tree) setCursor(nodeID string) {
	t.CurrentID = copyID(&nodeID)
}

// copyID clones an optional id so tree fields never alias caller memory.
func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
