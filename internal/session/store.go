// Package session implements the editing-session coordinator: per-document
// draft/version tracking, debounced autosave with save deduplication, tab
// and pane lifecycle, tag filtering, and the reconciliation workflows that
// keep all of them consistent while every store call is asynchronous.
//
// Concurrency correctness comes from per-document version counters and
// request ids, not from ordering assumptions: a completion is applied only
// when it still matches the current version/request, and conflicting
// multi-step workflows are serialized per resource through an explicit
// queue.
package session

import (
	"context"

	"github.com/starford/othala/internal/models"
)

// Store is the document/tree store contract the session depends on. The
// docstore service implements it; tests use an in-memory fake with
// controllable latency.
type Store interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	CreateDocument(ctx context.Context, content string) (*models.Document, error)
	UpdateDocument(ctx context.Context, id, content string) (*models.Document, error)
	SetTags(ctx context.Context, id string, tags []string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, filterTag string) ([]models.DocumentMetadata, error)
	ListTags(ctx context.Context) ([]string, error)
	DeleteFolder(ctx context.Context, folderID string, mode models.DeleteMode) error
}

// Publisher receives session events for the view layer. State mutation and
// notification are paired at explicit points; there is no implicit
// re-render dependency.
type Publisher interface {
	Publish(eventType string, data any)
}

// Event types published by the session.
const (
	EventDocumentState = "document.state"
	EventTabsChanged   = "session.tabs"
	EventLayoutChanged = "session.layout"
	EventListUpdated   = "list.updated"
	EventTagsUpdated   = "tags.updated"
	EventFilterChanged = "filter.changed"
	EventTreeUpdated   = "tree.updated"
)
