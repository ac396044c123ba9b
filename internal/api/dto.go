package api

import (
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Content string `json:"content" example:"# Hello\nWorld"`
}

// UpdateDocumentRequest is the request body for replacing document content.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"# Updated\nContent" validate:"required"`
}

// SetTagsRequest is the request body for rewriting a document's tags.
type SetTagsRequest struct {
	Tags []string `json:"tags" example:"work,urgent" validate:"required"`
}

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []models.DocumentMetadata `json:"documents" validate:"required"`
	Total     int                       `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the tag catalog.
type TagListResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// TreeResponse wraps one level of the workspace tree.
type TreeResponse struct {
	Nodes []models.WorkspaceNode `json:"nodes" validate:"required"`
}

// CreateFolderRequest is the request body for creating a folder node.
type CreateFolderRequest struct {
	ParentID string `json:"parent_id" example:""`
	Name     string `json:"name" example:"Projects" validate:"required"`
}

// CreateNoteRefRequest is the request body for placing a document in the tree.
type CreateNoteRefRequest struct {
	ParentID    string `json:"parent_id" example:""`
	DocumentID  string `json:"document_id" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
}

// RenameNodeRequest is the request body for renaming a tree node.
type RenameNodeRequest struct {
	Name string `json:"name" validate:"required"`
}

// MoveNodeRequest is the request body for moving a tree node. TargetOrder is
// accepted for client compatibility; siblings keep name ordering.
type MoveNodeRequest struct {
	ParentID    string `json:"parent_id"`
	TargetOrder *int   `json:"target_order,omitempty"`
}

// OpenTabRequest is the request body for opening a document in the session.
type OpenTabRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Pinned     bool   `json:"pinned"`
}

// TabTargetRequest addresses one tab in one pane.
type TabTargetRequest struct {
	PaneID     string `json:"pane_id" validate:"required"`
	DocumentID string `json:"document_id" validate:"required"`
}

// DraftRequest is the request body for a draft edit.
type DraftRequest struct {
	Content string `json:"content"`
}

// SplitPaneRequest is the request body for splitting a pane.
type SplitPaneRequest struct {
	PaneID          string `json:"pane_id" validate:"required"`
	Direction       string `json:"direction" example:"vertical" validate:"required"`
	ContainerExtent int    `json:"container_extent" example:"1200" validate:"required"`
}

// PaneTargetRequest addresses one pane.
type PaneTargetRequest struct {
	PaneID string `json:"pane_id" validate:"required"`
}

// FilterRequest is the request body for applying a tag filter.
type FilterRequest struct {
	Tag string `json:"tag" validate:"required"`
}
