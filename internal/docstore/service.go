// Package docstore implements the document/tree store contract over the
// vault file system and the SQLite index. Document content lives in files;
// metadata, tags, tree nodes, and soft-delete flags live in the index.
//
// All failures are apperr values; validation is rejected before any I/O and
// no operation mutates state partially on failure.
package docstore

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    *index.DB
}

// NewService creates a new document store service.
func NewService(store storage.Provider, db *index.DB) *Service {
	return &Service{store: store, db: db}
}

// Index exposes the underlying index for read-side projections.
func (s *Service) Index() index.Store { return s.db }

// GetDocument reads a document from the vault and enriches it with index
// metadata. Soft-deleted documents are returned with Deleted set so callers
// can offer restore.
func (s *Service) GetDocument(_ context.Context, id string) (*models.Document, error) {
	row, err := s.db.GetDocumentRow(id)
	if err != nil {
		if index.IsNotFound(err) {
			return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	return docFromRow(row, string(data)), nil
}

// CreateDocument writes a new document to the vault and indexes it.
func (s *Service) CreateDocument(ctx context.Context, content string) (*models.Document, error) {
	id := uuid.NewString()
	return s.writeDocument(ctx, id, content, time.Time{})
}

// UpdateDocument overwrites a document's content.
func (s *Service) UpdateDocument(ctx context.Context, id string, content string) (*models.Document, error) {
	row, err := s.db.GetDocumentRow(id)
	if err != nil {
		if index.IsNotFound(err) {
			return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	return s.writeDocument(ctx, id, content, row.CreatedAt)
}

// SetTags replaces a document's tags by rewriting the frontmatter tags field
// and writing the content through the normal update path.
func (s *Service) SetTags(ctx context.Context, id string, tags []string) (*models.Document, error) {
	data, err := s.store.Read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	updated, err := parser.WithTags(data, tags)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	return s.UpdateDocument(ctx, id, string(updated))
}

// DeleteDocument soft-deletes a document. Existing note-refs become dangling
// and are filtered out by the read-side projection; nothing blocks on them.
func (s *Service) DeleteDocument(_ context.Context, id string) error {
	if err := s.db.SetDocumentDeleted(id, true); err != nil {
		if index.IsNotFound(err) {
			return apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return apperr.Wrap(apperr.CodeInternal, err)
	}
	return nil
}

// RestoreDocument clears a document's soft-delete flag, which makes its
// surviving references valid again without any additional write.
func (s *Service) RestoreDocument(_ context.Context, id string) error {
	if err := s.db.SetDocumentDeleted(id, false); err != nil {
		if index.IsNotFound(err) {
			return apperr.New(apperr.CodeNotFound, "document %s not found", id)
		}
		return apperr.Wrap(apperr.CodeInternal, err)
	}
	return nil
}

// ListDocuments returns live documents, newest first, optionally filtered by
// a normalised tag.
func (s *Service) ListDocuments(_ context.Context, filterTag string) ([]models.DocumentMetadata, error) {
	rows, err := s.db.ListDocuments(parser.NormalizeTag(filterTag))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	items := make([]models.DocumentMetadata, len(rows))
	for i, r := range rows {
		items[i] = models.DocumentMetadata{
			ID:        r.ID,
			Title:     r.Title,
			Tags:      nonNilSlice(r.Tags),
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, nil
}

// ListTags returns the tag catalog.
func (s *Service) ListTags(_ context.Context) ([]string, error) {
	tags, err := s.db.ListTags()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	return nonNilSlice(tags), nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// writeDocument validates nothing beyond the id (content is free-form),
// writes the file, and reindexes.
func (s *Service) writeDocument(_ context.Context, id, content string, createdAt time.Time) (*models.Document, error) {
	if err := s.store.Write(id, []byte(content)); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	res, err := parser.Parse([]byte(content))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	now := time.Now()
	if createdAt.IsZero() {
		createdAt = now
	}
	row := index.DocumentRow{
		ID:        id,
		Title:     res.Title,
		Checksum:  storage.Checksum([]byte(content)),
		Tags:      res.Tags,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	if err := s.db.UpsertDocument(row, res.Body); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	// Re-read the row so the deleted flag reflects reality (updates to a
	// soft-deleted document keep it deleted).
	stored, err := s.db.GetDocumentRow(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	return docFromRow(stored, content), nil
}

func docFromRow(row *index.DocumentRow, content string) *models.Document {
	return &models.Document{
		ID:        row.ID,
		Title:     row.Title,
		Content:   content,
		Tags:      nonNilSlice(row.Tags),
		Checksum:  row.Checksum,
		Deleted:   row.Deleted,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
