package index

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/othala/internal/storage"
)

// watcherTestEnv sets up a vault dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "othala-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return vaultDir, store, db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcherNewFileIndexed(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, vaultDir, quietLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})

	// Give the watcher a moment to register the vault dir.
	time.Sleep(100 * time.Millisecond)

	if err := store.Write("watched", []byte("# Watched\nbody")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		row, err := db.GetDocumentRow("watched")
		return err == nil && row.Title == "Watched"
	}, "new file was not indexed")

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, "no watcher callback fired")
}

func TestWatcherRemoveDeletesRow(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	if err := store.Write("gone", []byte("# Gone")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, vaultDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := store.Remove("gone"); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		_, err := db.GetDocumentRow("gone")
		return IsNotFound(err)
	}, "removed file still indexed")
}

func TestWatcherIgnoresTempFiles(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events int
	go Watch(ctx, db, store, vaultDir, quietLogger(), func(_, _ string) {
		mu.Lock()
		events++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	// Atomic writes create a dot-prefixed temp file first; only the final
	// rename target should be indexed.
	if err := store.Write("real", []byte("# Real")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		_, err := db.GetDocumentRow("real")
		return err == nil
	}, "real file was not indexed")

	checksums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(checksums) != 1 {
		t.Errorf("indexed %d documents, want 1", len(checksums))
	}
}

func TestSyncReconcilesIndex(t *testing.T) {
	_, store, db := watcherTestEnv(t)

	if err := store.Write("a", []byte("# A\n#tagged body")); err != nil {
		t.Fatal(err)
	}
	// Stale row for a file that no longer exists.
	_ = db.UpsertDocument(DocumentRow{ID: "stale", Checksum: "x", UpdatedAt: time.Now()}, "old")

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	row, err := db.GetDocumentRow("a")
	if err != nil {
		t.Fatalf("a not indexed: %v", err)
	}
	if row.Title != "A" {
		t.Errorf("title = %q", row.Title)
	}
	if _, err := db.GetDocumentRow("stale"); !IsNotFound(err) {
		t.Error("stale row survived sync")
	}
}
