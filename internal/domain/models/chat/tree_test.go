package chat

import (
	"errors"
	"testing"

	"arbor/internal/domain"
)

// pathTexts extracts the transcript texts for easy comparison
func pathTexts(t *testing.T, tree *Tree) []string {
	t.Helper()
	path := tree.ActivePath()
	texts := make([]string, 0, len(path))
	for _, entry := range path {
		texts = append(texts, entry.Text)
	}
	return texts
}

// TestAppendNode_GrowsLinearChain tests that alternating appends produce a
// root-to-tip path in insertion order with the cursor at the tip
func TestAppendNode_GrowsLinearChain(t *testing.T) {
	tree := NewTree()

	first := tree.AppendNode(RoleUser, "hi")
	if tree.RootID == nil || *tree.RootID != first {
		t.Fatalf("expected first node %s to become root, got %v", first, tree.RootID)
	}

	second := tree.AppendNode(RoleAssistant, "hello")
	third := tree.AppendNode(RoleUser, "how are you?")

	if tree.CurrentID == nil || *tree.CurrentID != third {
		t.Fatalf("expected cursor at %s, got %v", third, tree.CurrentID)
	}

	path := tree.ActivePath()
	if len(path) != 3 {
		t.Fatalf("expected path length 3, got %d", len(path))
	}
	if path[0].Node.ID != first || path[1].Node.ID != second || path[2].Node.ID != third {
		t.Errorf("path order wrong: got %s, %s, %s", path[0].Node.ID, path[1].Node.ID, path[2].Node.ID)
	}
	if path[1].Node.ParentID == nil || *path[1].Node.ParentID != first {
		t.Errorf("expected second node's parent to be %s, got %v", first, path[1].Node.ParentID)
	}

	// Parent tracks the reply as a child
	root := tree.Nodes[first]
	if len(root.ChildIDs) != 1 || root.ChildIDs[0] != second {
		t.Errorf("expected root child ids [%s], got %v", second, root.ChildIDs)
	}
}

// TestActivePath_EmptyTree tests that an empty tree yields an empty transcript
func TestActivePath_EmptyTree(t *testing.T) {
	tree := NewTree()
	if path := tree.ActivePath(); len(path) != 0 {
		t.Fatalf("expected empty path, got %d entries", len(path))
	}
}

// TestAddVersion_RoundTrip tests that selecting the index returned by
// AddVersion reads back the appended text
func TestAddVersion_RoundTrip(t *testing.T) {
	tree := NewTree()
	nodeID := tree.AppendNode(RoleUser, "original")

	idx, err := tree.AddVersion(nodeID, "x")
	if err != nil {
		t.Fatalf("AddVersion failed: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected version index 1, got %d", idx)
	}

	if err := tree.SelectVersion(nodeID, idx); err != nil {
		t.Fatalf("SelectVersion failed: %v", err)
	}
	if got := tree.Nodes[nodeID].SelectedText(); got != "x" {
		t.Errorf("expected selected text 'x', got '%s'", got)
	}

	// History is append-only: the original version survives
	if tree.Nodes[nodeID].Versions[0].Text != "original" {
		t.Errorf("expected version 0 to remain 'original', got '%s'", tree.Nodes[nodeID].Versions[0].Text)
	}
}

// TestAddVersion_UnknownNode tests the NotFound failure mode
func TestAddVersion_UnknownNode(t *testing.T) {
	tree := NewTree()
	tree.AppendNode(RoleUser, "hi")

	_, err := tree.AddVersion("no-such-node", "x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestSelectVersion_Bounds tests bounds-checking against a two-version node
func TestSelectVersion_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr error
	}{
		{"first version", 0, nil},
		{"second version", 1, nil},
		{"negative index", -1, domain.ErrValidation},
		{"index past end", 2, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree()
			nodeID := tree.AppendNode(RoleUser, "v0")
			if _, err := tree.AddVersion(nodeID, "v1"); err != nil {
				t.Fatalf("AddVersion failed: %v", err)
			}

			err := tree.SelectVersion(nodeID, tt.index)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if tree.Nodes[nodeID].SelectedVersion != tt.index {
					t.Errorf("expected selected version %d, got %d", tt.index, tree.Nodes[nodeID].SelectedVersion)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSelectVersion_DoesNotMoveCursor tests that branch switching never
// touches the active tip
func TestSelectVersion_DoesNotMoveCursor(t *testing.T) {
	tree := NewTree()
	first := tree.AppendNode(RoleUser, "hi")
	tip := tree.AppendNode(RoleAssistant, "hello")

	if _, err := tree.AddVersion(first, "hi there"); err != nil {
		t.Fatalf("AddVersion failed: %v", err)
	}
	if err := tree.SelectVersion(first, 0); err != nil {
		t.Fatalf("SelectVersion failed: %v", err)
	}

	if tree.CurrentID == nil || *tree.CurrentID != tip {
		t.Errorf("expected cursor to stay at %s, got %v", tip, tree.CurrentID)
	}
}

// TestEditUserMessage_RewindsCursor tests the edit contract: new version
// selected, cursor rewound, downstream nodes detached but still stored
func TestEditUserMessage_RewindsCursor(t *testing.T) {
	tree := NewTree()
	firstUser := tree.AppendNode(RoleUser, "hi")
	firstReply := tree.AppendNode(RoleAssistant, "hello")
	secondUser := tree.AppendNode(RoleUser, "tell me more")
	secondReply := tree.AppendNode(RoleAssistant, "sure...")

	idx, err := tree.EditUserMessage(secondUser, "tell me everything")
	if err != nil {
		t.Fatalf("EditUserMessage failed: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected version index 1, got %d", idx)
	}

	texts := pathTexts(t, tree)
	if len(texts) != 3 {
		t.Fatalf("expected path length 3 after edit, got %d", len(texts))
	}
	if texts[2] != "tell me everything" {
		t.Errorf("expected path to end with the edited text, got '%s'", texts[2])
	}

	// The stale reply is off the active path but still retrievable
	for _, entry := range tree.ActivePath() {
		if entry.Node.ID == secondReply {
			t.Errorf("detached node %s must not appear on the active path", secondReply)
		}
	}
	if _, err := tree.Node(secondReply); err != nil {
		t.Errorf("detached node should remain stored, got %v", err)
	}
	_ = firstUser
	_ = firstReply
}

// TestEditUserMessage_RejectsAssistantNode tests that only user messages
// are editable
func TestEditUserMessage_RejectsAssistantNode(t *testing.T) {
	tree := NewTree()
	tree.AppendNode(RoleUser, "hi")
	reply := tree.AppendNode(RoleAssistant, "hello")

	_, err := tree.EditUserMessage(reply, "rewritten")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := tree.Nodes[reply].SelectedText(); got != "hello" {
		t.Errorf("failed edit must not mutate the node, got '%s'", got)
	}
}

// TestAppendChild_DoesNotMoveCursor tests explicit-parent insertion used by
// reply fulfillment
func TestAppendChild_DoesNotMoveCursor(t *testing.T) {
	tree := NewTree()
	first := tree.AppendNode(RoleUser, "hi")
	tip := tree.AppendNode(RoleUser, "second thought")

	childID, err := tree.AppendChild(first, RoleAssistant, "hello")
	if err != nil {
		t.Fatalf("AppendChild failed: %v", err)
	}

	if tree.CurrentID == nil || *tree.CurrentID != tip {
		t.Errorf("expected cursor to stay at %s, got %v", tip, tree.CurrentID)
	}
	child := tree.Nodes[childID]
	if child.ParentID == nil || *child.ParentID != first {
		t.Errorf("expected child parent %s, got %v", first, child.ParentID)
	}

	// The reply is stored but not on the active path
	for _, entry := range tree.ActivePath() {
		if entry.Node.ID == childID {
			t.Errorf("appended child must not join the active path")
		}
	}
}

// TestAppendChild_UnknownParent tests the NotFound failure mode
func TestAppendChild_UnknownParent(t *testing.T) {
	tree := NewTree()
	if _, err := tree.AppendChild("missing", RoleAssistant, "hello"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestAssistantChild tests reply-node lookup under a user node
func TestAssistantChild(t *testing.T) {
	tree := NewTree()
	userID := tree.AppendNode(RoleUser, "hi")

	if got := tree.AssistantChild(userID); got != nil {
		t.Fatalf("expected no assistant child yet, got %s", got.ID)
	}

	replyID := tree.AppendNode(RoleAssistant, "hello")
	got := tree.AssistantChild(userID)
	if got == nil || got.ID != replyID {
		t.Fatalf("expected assistant child %s, got %v", replyID, got)
	}
}

// TestSetCurrent_BranchingCreatesSecondChild tests the tree-browser jump:
// moving the cursor to an interior node and appending grows a second branch
func TestSetCurrent_BranchingCreatesSecondChild(t *testing.T) {
	tree := NewTree()
	tree.AppendNode(RoleUser, "hi")
	reply := tree.AppendNode(RoleAssistant, "hello")
	tree.AppendNode(RoleUser, "first follow-up")

	if err := tree.SetCurrent(reply); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	second := tree.AppendNode(RoleUser, "second follow-up")

	children := tree.Nodes[reply].ChildIDs
	if len(children) != 2 {
		t.Fatalf("expected 2 children under %s, got %d", reply, len(children))
	}

	texts := pathTexts(t, tree)
	if texts[len(texts)-1] != "second follow-up" {
		t.Errorf("expected active path to follow the new branch, got '%s'", texts[len(texts)-1])
	}
	if tree.CurrentID == nil || *tree.CurrentID != second {
		t.Errorf("expected cursor at %s, got %v", second, tree.CurrentID)
	}
}

// TestSetCurrent_UnknownNode tests the NotFound failure mode
func TestSetCurrent_UnknownNode(t *testing.T) {
	tree := NewTree()
	if err := tree.SetCurrent("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestActivePath_InvariantHoldsAfterMutations tests that no mutation
// sequence leaves a selected version out of bounds anywhere on the path
func TestActivePath_InvariantHoldsAfterMutations(t *testing.T) {
	tree := NewTree()
	ids := make([]string, 0, 6)
	role := RoleUser
	for i := 0; i < 6; i++ {
		ids = append(ids, tree.AppendNode(role, "turn"))
		if role == RoleUser {
			role = RoleAssistant
		} else {
			role = RoleUser
		}
	}
	for _, id := range ids {
		if _, err := tree.AddVersion(id, "revised"); err != nil {
			t.Fatalf("AddVersion failed: %v", err)
		}
		for _, entry := range tree.ActivePath() {
			node := entry.Node
			if node.SelectedVersion < 0 || node.SelectedVersion >= len(node.Versions) {
				t.Fatalf("node %s selected version %d out of bounds (%d versions)",
					node.ID, node.SelectedVersion, len(node.Versions))
			}
		}
	}
}
