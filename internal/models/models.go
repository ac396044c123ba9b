// Package models defines the domain types for Othala.
package models

import "time"

// Document is a note/task identified by a stable UUID. Content lives in the
// vault as <id>.md; everything else is index metadata.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"checksum"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeKind discriminates workspace tree nodes.
type NodeKind string

const (
	KindFolder  NodeKind = "folder"
	KindNoteRef NodeKind = "noteRef"
)

// WorkspaceNode is one row of the hierarchical workspace tree. A noteRef
// places a Document (by AtomID) in the tree; a Document may have zero, one,
// or many placements.
type WorkspaceNode struct {
	NodeID      string   `json:"node_id"`
	Kind        NodeKind `json:"kind"`
	ParentID    string   `json:"parent_id,omitempty"` // empty = root
	AtomID      string   `json:"atom_id,omitempty"`   // set for noteRef only
	DisplayName string   `json:"display_name"`
	SortOrder   int      `json:"sort_order"`
	Deleted     bool     `json:"deleted,omitempty"`
}

// UncategorizedNodeID is the synthetic root folder listing documents with no
// live placement. It is never persisted; as a parent id it maps to root.
const UncategorizedNodeID = "uncategorized"

// DeleteMode selects folder deletion behaviour.
type DeleteMode string

const (
	// DeleteDissolve soft-deletes the folder node and reparents its direct
	// children to root.
	DeleteDissolve DeleteMode = "dissolve"
	// DeleteAll soft-deletes the folder subtree's note-refs and any document
	// left with no live reference anywhere else in the tree.
	DeleteAll DeleteMode = "deleteAll"
)

// Valid reports whether m is a known delete mode.
func (m DeleteMode) Valid() bool {
	return m == DeleteDissolve || m == DeleteAll
}
