package index

import (
	"log/slog"
	"time"

	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted (soft-delete flags preserved)
//   - rows whose files are gone from disk are hard-deleted
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.Read(m.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", m.ID), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.ID, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("id", m.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", m.ID))
		}
	}

	// Remove rows whose backing files no longer exist.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.HardDeleteDocument(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, id string, data []byte, updatedAt time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	row := DocumentRow{
		ID:        id,
		Title:     res.Title,
		Checksum:  storage.Checksum(data),
		Tags:      res.Tags,
		UpdatedAt: updatedAt,
	}
	return db.UpsertDocument(row, res.Body)
}
