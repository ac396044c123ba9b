package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	ID        string
	Title     string
	Checksum  string
	Tags      []string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Title   string
	Snippet string
}

// UpsertDocument inserts or updates a document row and its FTS entry within
// a transaction. The deleted flag and created_at are preserved on update so
// reindexing content never resurrects a soft-deleted document.
func (db *DB) UpsertDocument(row DocumentRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(row.Tags)
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = row.UpdatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO documents (id, title, checksum, tags, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, row.ID, row.Title, row.Checksum, string(tagsJSON), body, createdAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, row.ID, row.Title, body, row.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// SetDocumentDeleted toggles the soft-delete flag.
func (db *DB) SetDocumentDeleted(id string, deleted bool) error {
	flag := 0
	if deleted {
		flag = 1
	}
	res, err := db.conn.Exec(`UPDATE documents SET deleted = ? WHERE id = ?`, flag, id)
	if err != nil {
		return fmt.Errorf("index: set deleted: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HardDeleteDocument removes a document row entirely. Used by vault
// reconciliation when the backing file is gone.
func (db *DB) HardDeleteDocument(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM documents WHERE id = ?`, id)

	return tx.Commit()
}

// GetDocumentRow returns a document row including its soft-delete flag, or
// sql.ErrNoRows if the id is unknown.
func (db *DB) GetDocumentRow(id string) (*DocumentRow, error) {
	var (
		row      DocumentRow
		tagsJSON string
		deleted  int
	)
	err := db.conn.QueryRow(`
		SELECT id, title, checksum, tags, deleted, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&row.ID, &row.Title, &row.Checksum, &tagsJSON, &deleted, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &row.Tags)
	row.Deleted = deleted != 0
	return &row, nil
}

// ListDocuments returns live (non-deleted) documents, newest first, filtered
// by tag when tag is non-empty. Tags are stored as a JSON array, so the
// filter matches the quoted tag literal inside it.
func (db *DB) ListDocuments(tag string) ([]DocumentRow, error) {
	query := `
		SELECT id, title, checksum, tags, deleted, created_at, updated_at
		FROM documents WHERE deleted = 0
	`
	args := []any{}
	if tag != "" {
		query += ` AND tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}
	query += ` ORDER BY updated_at DESC, id ASC`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var (
			row      DocumentRow
			tagsJSON string
			deleted  int
		)
		if err := rows.Scan(&row.ID, &row.Title, &row.Checksum, &tagsJSON, &deleted, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &row.Tags)
		row.Deleted = deleted != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListTags returns the sorted set of tags across all live documents.
func (db *DB) ListTags() ([]string, error) {
	rows, err := db.conn.Query(`SELECT tags FROM documents WHERE deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: list tags: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tagsJSON string
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, err
		}
		var tags []string
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		for _, t := range tags {
			set[t] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// LiveDocumentIDs returns the set of non-deleted document ids.
func (db *DB) LiveDocumentIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM documents WHERE deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: live ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns id → checksum for every indexed document, including
// soft-deleted ones (their files are still on disk).
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// IsNotFound reports whether err is the index's row-missing error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
