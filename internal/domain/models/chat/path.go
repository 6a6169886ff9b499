package chat

import (
	"fmt"
)

// PathEntry is one turn of the active transcript: the node plus the text of
// its selected version at resolution time.
type PathEntry struct {
	Node *Node  `json:"node"`
	Text string `json:"text"`
}

// ActivePath computes the single linear transcript: walk ParentID links from
// the cursor back to the root, then reverse into root-to-tip order. Pure and
// O(depth); callers must not treat any cached copy as authoritative after a
// mutation.
//
// An empty tree yields an empty path. A parent chain that references a
// missing node, or a node whose selected version is out of bounds, is an
// internal-consistency violation and panics (mutation-path bug, recovered at
// the HTTP boundary).
func (t *Tree) ActivePath() []PathEntry {
	if t.CurrentID == nil {
		return nil
	}
	return t.PathTo(*t.CurrentID)
}

// OnPath reports whether nodeID lies on the active path.
func (t *Tree) OnPath(nodeID string) bool {
	for id := t.CurrentID; id != nil; {
		node, ok := t.Nodes[*id]
		if !ok {
			return false
		}
		if node.ID == nodeID {
			return true
		}
		id = node.ParentID
	}
	return false
}

// PathTo computes the transcript that ends at nodeID instead of the cursor.
// Regeneration uses it to rebuild the exchange as seen from the reply's
// parent, regardless of where the cursor has moved since.
func (t *Tree) PathTo(nodeID string) []PathEntry {
	var entries []PathEntry
	for id := &nodeID; id != nil; {
		node, ok := t.Nodes[*id]
		if !ok {
			panic(fmt.Sprintf("path references missing node %s", *id))
		}
		entries = append(entries, PathEntry{Node: node, Text: node.SelectedText()})
		id = node.ParentID
	}

	// Collected tip→root; reverse in place.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}
