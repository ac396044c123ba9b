package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
)

func testService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "othala-docstore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(store, db)
}

func mustCreate(t *testing.T, s *Service, content string) *models.Document {
	t.Helper()
	doc, err := s.CreateDocument(context.Background(), content)
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return doc
}

func TestCreateAndGetDocument(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	doc := mustCreate(t, s, "# Hello\nWorld #greeting")
	if doc.ID == "" {
		t.Fatal("empty id")
	}
	if doc.Title != "Hello" {
		t.Errorf("title = %q", doc.Title)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Content != "# Hello\nWorld #greeting" {
		t.Errorf("content = %q", got.Content)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "greeting" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := testService(t)
	_, err := s.GetDocument(context.Background(), "nope")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestUpdateDocumentKeepsCreatedAt(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "# V1")

	updated, err := s.UpdateDocument(ctx, doc.ID, "# V2")
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	if updated.Title != "V2" {
		t.Errorf("title = %q", updated.Title)
	}
	if !updated.CreatedAt.Equal(doc.CreatedAt) {
		t.Errorf("created_at changed: %v → %v", doc.CreatedAt, updated.CreatedAt)
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "# Gone")

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument after delete: %v", err)
	}
	if !got.Deleted {
		t.Error("deleted flag not set")
	}

	list, err := s.ListDocuments(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("deleted doc still listed: %+v", list)
	}

	if err := s.RestoreDocument(ctx, doc.ID); err != nil {
		t.Fatalf("RestoreDocument: %v", err)
	}
	list, _ = s.ListDocuments(ctx, "")
	if len(list) != 1 {
		t.Errorf("restored doc not listed")
	}
}

func TestSetTagsRewritesFrontmatter(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "# Tagged\nbody")

	updated, err := s.SetTags(ctx, doc.ID, []string{" Work ", "URGENT", "work"})
	if err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if len(updated.Tags) != 2 || updated.Tags[0] != "work" || updated.Tags[1] != "urgent" {
		t.Errorf("tags = %v", updated.Tags)
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 {
		t.Errorf("catalog = %v", tags)
	}

	// Tag filter matches only normalised tags.
	list, err := s.ListDocuments(ctx, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("filter by Work = %d docs, want 1", len(list))
	}
}

func TestCreateFolderValidation(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, err := s.CreateFolder(ctx, "", ""); !apperr.IsCode(err, apperr.CodeInvalidDisplayName) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := s.CreateFolder(ctx, "missing-parent", "X"); !apperr.IsCode(err, apperr.CodeInvalidParentNodeID) {
		t.Errorf("bad parent err = %v", err)
	}

	f, err := s.CreateFolder(ctx, "", "Projects")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}

	// A noteRef is not a valid parent.
	doc := mustCreate(t, s, "# D")
	ref, err := s.CreateNoteRef(ctx, f.NodeID, doc.ID, "")
	if err != nil {
		t.Fatalf("CreateNoteRef: %v", err)
	}
	if _, err := s.CreateFolder(ctx, ref.NodeID, "Nested"); !apperr.IsCode(err, apperr.CodeInvalidParentNodeID) {
		t.Errorf("noteRef parent err = %v", err)
	}
}

func TestCreateNoteRefDefaultsDisplayName(t *testing.T) {
	s := testService(t)
	ctx := context.Background()
	doc := mustCreate(t, s, "# My Title")

	ref, err := s.CreateNoteRef(ctx, "", doc.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if ref.DisplayName != "My Title" {
		t.Errorf("display name = %q", ref.DisplayName)
	}

	// Deleted documents cannot be placed.
	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNoteRef(ctx, "", doc.ID, "x"); !apperr.IsCode(err, apperr.CodeInvalidDocumentID) {
		t.Errorf("deleted atom err = %v", err)
	}
}

func TestUncategorizedParentMapsToRoot(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	f, err := s.CreateFolder(ctx, models.UncategorizedNodeID, "RootFolder")
	if err != nil {
		t.Fatal(err)
	}
	if f.ParentID != "" {
		t.Errorf("parent = %q, want root", f.ParentID)
	}
}

func TestMoveNodeRejectsOwnSubtree(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	a, _ := s.CreateFolder(ctx, "", "A")
	b, _ := s.CreateFolder(ctx, a.NodeID, "B")

	if err := s.MoveNode(ctx, a.NodeID, b.NodeID); !apperr.IsCode(err, apperr.CodeInvalidParentNodeID) {
		t.Errorf("cycle move err = %v", err)
	}
	if err := s.MoveNode(ctx, b.NodeID, ""); err != nil {
		t.Errorf("legal move err = %v", err)
	}
}

func TestDeleteFolderDissolve(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	f, _ := s.CreateFolder(ctx, "", "Doomed")
	child, _ := s.CreateFolder(ctx, f.NodeID, "Child")
	doc := mustCreate(t, s, "# Doc")
	ref, _ := s.CreateNoteRef(ctx, f.NodeID, doc.ID, "")

	if err := s.DeleteFolder(ctx, f.NodeID, models.DeleteDissolve); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	root, err := s.ListChildren(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, n := range root {
		ids[n.NodeID] = true
	}
	if !ids[child.NodeID] || !ids[ref.NodeID] {
		t.Errorf("children not reparented to root: %+v", root)
	}
	if ids[f.NodeID] {
		t.Error("dissolved folder still listed")
	}

	// Document untouched by dissolve.
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil || got.Deleted {
		t.Errorf("document affected by dissolve: %v %v", got, err)
	}
}

func TestDeleteFolderDeleteAll(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	f, _ := s.CreateFolder(ctx, "", "Doomed")
	sub, _ := s.CreateFolder(ctx, f.NodeID, "Sub")

	onlyHere := mustCreate(t, s, "# Only here")
	elsewhere := mustCreate(t, s, "# Elsewhere too")

	if _, err := s.CreateNoteRef(ctx, sub.NodeID, onlyHere.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNoteRef(ctx, f.NodeID, elsewhere.ID, ""); err != nil {
		t.Fatal(err)
	}
	outside, err := s.CreateNoteRef(ctx, "", elsewhere.ID, "kept")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFolder(ctx, f.NodeID, models.DeleteAll); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}

	got, _ := s.GetDocument(ctx, onlyHere.ID)
	if got == nil || !got.Deleted {
		t.Error("document referenced only inside subtree should be soft-deleted")
	}
	got, _ = s.GetDocument(ctx, elsewhere.ID)
	if got == nil || got.Deleted {
		t.Error("document with an outside reference must survive")
	}

	root, _ := s.ListChildren(ctx, "")
	found := false
	for _, n := range root {
		if n.NodeID == outside.NodeID {
			found = true
		}
		if n.NodeID == f.NodeID {
			t.Error("deleted folder still listed")
		}
	}
	if !found {
		t.Error("outside reference should still be listed")
	}
}
