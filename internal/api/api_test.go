package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/othala/internal/docstore"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/testutil"
	"github.com/starford/othala/internal/tree"
)

// testEnv sets up a temp vault, SQLite DB, services, session coordinator,
// and router for testing. An empty authToken means auth disabled.
func testEnv(t *testing.T, authToken string) (*docstore.Service, http.Handler) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	svc := docstore.NewService(store, db)
	proj := tree.NewProjection(db)
	coord := session.NewCoordinator(svc, broker, testLogger(), session.Config{
		AutosaveDelay: 50 * time.Millisecond,
	})
	router := NewRouter(svc, proj, coord, authToken != "", authToken, broker)
	return svc, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createDoc(t *testing.T, router http.Handler, content string) models.Document {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/documents", CreateDocumentRequest{Content: content})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	return decodeBody[models.Document](t, w)
}

func TestDocumentCRUD(t *testing.T) {
	_, router := testEnv(t, "")

	doc := createDoc(t, router, "# Hello\n\nworld")
	if doc.Title != "Hello" {
		t.Errorf("title = %q", doc.Title)
	}

	w := doJSON(t, router, http.MethodGet, "/documents/"+doc.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	got := decodeBody[models.Document](t, w)
	if got.Content != "# Hello\n\nworld" {
		t.Errorf("content = %q", got.Content)
	}

	w = doJSON(t, router, http.MethodPut, "/documents/"+doc.ID, UpdateDocumentRequest{Content: "# Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	if got := decodeBody[models.Document](t, w); got.Title != "Renamed" {
		t.Errorf("updated title = %q", got.Title)
	}

	w = doJSON(t, router, http.MethodDelete, "/documents/"+doc.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}

	// Soft-deleted documents vanish from the list but restore cleanly.
	w = doJSON(t, router, http.MethodGet, "/documents", nil)
	if got := decodeBody[DocumentListResponse](t, w); got.Total != 0 {
		t.Errorf("list after delete = %+v", got)
	}

	w = doJSON(t, router, http.MethodPost, "/documents/"+doc.ID+"/restore", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/documents", nil)
	if got := decodeBody[DocumentListResponse](t, w); got.Total != 1 {
		t.Errorf("list after restore = %+v", got)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/documents/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	resp := decodeBody[errResponse](t, w)
	if resp.Code != "not_found" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestTagsEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	doc := createDoc(t, router, "# Tagged")

	w := doJSON(t, router, http.MethodPut, "/documents/"+doc.ID+"/tags", SetTagsRequest{Tags: []string{"Work", "urgent"}})
	if w.Code != http.StatusOK {
		t.Fatalf("set tags: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/tags", nil)
	got := decodeBody[TagListResponse](t, w)
	if len(got.Tags) != 2 || got.Tags[0] != "urgent" || got.Tags[1] != "work" {
		t.Errorf("tags = %v", got.Tags)
	}

	// Tag filter narrows the list.
	w = doJSON(t, router, http.MethodGet, "/documents?tag=work", nil)
	if got := decodeBody[DocumentListResponse](t, w); got.Total != 1 {
		t.Errorf("filtered list = %+v", got)
	}
	w = doJSON(t, router, http.MethodGet, "/documents?tag=nope", nil)
	if got := decodeBody[DocumentListResponse](t, w); got.Total != 0 {
		t.Errorf("filtered list = %+v", got)
	}
}

func TestSearch(t *testing.T) {
	_, router := testEnv(t, "")
	createDoc(t, router, "# Alpha\n\nquantum entanglement")
	createDoc(t, router, "# Beta\n\nnothing relevant")

	w := doJSON(t, router, http.MethodGet, "/search?q=quantum", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	got := decodeBody[SearchResponse](t, w)
	if len(got.Results) != 1 || got.Results[0].Title != "Alpha" {
		t.Errorf("results = %+v", got.Results)
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q: %d", w.Code)
	}
}

func TestTreeEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	doc := createDoc(t, router, "# In Tree")

	w := doJSON(t, router, http.MethodPost, "/tree/folders", CreateFolderRequest{Name: "Projects"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create folder: %d %s", w.Code, w.Body.String())
	}
	folder := decodeBody[models.WorkspaceNode](t, w)

	w = doJSON(t, router, http.MethodPost, "/tree/refs", CreateNoteRefRequest{
		ParentID: folder.NodeID, DocumentID: doc.ID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create ref: %d %s", w.Code, w.Body.String())
	}
	ref := decodeBody[models.WorkspaceNode](t, w)
	if ref.DisplayName != "In Tree" {
		t.Errorf("default display name = %q", ref.DisplayName)
	}

	w = doJSON(t, router, http.MethodGet, "/tree?parent="+folder.NodeID, nil)
	if got := decodeBody[TreeResponse](t, w); len(got.Nodes) != 1 {
		t.Errorf("folder children = %+v", got.Nodes)
	}

	// Root listing leads with the synthetic Uncategorized folder.
	w = doJSON(t, router, http.MethodGet, "/tree", nil)
	nodes := decodeBody[TreeResponse](t, w).Nodes
	if len(nodes) == 0 || nodes[0].NodeID != models.UncategorizedNodeID {
		t.Errorf("root = %+v", nodes)
	}

	w = doJSON(t, router, http.MethodPut, "/tree/nodes/"+folder.NodeID+"/rename", RenameNodeRequest{Name: "Archive"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("rename: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPut, "/tree/nodes/"+ref.NodeID+"/move", MoveNodeRequest{ParentID: ""})
	if w.Code != http.StatusNoContent {
		t.Fatalf("move: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/tree/folders/"+folder.NodeID+"?mode=dissolve", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete folder: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/tree/folders/x?mode=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus mode: %d", w.Code)
	}
}

func TestFolderValidationErrors(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/tree/folders", CreateFolderRequest{Name: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name: %d", w.Code)
	}
	if resp := decodeBody[errResponse](t, w); resp.Code != "invalid_display_name" {
		t.Errorf("code = %q", resp.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/tree/folders", CreateFolderRequest{ParentID: "ghost", Name: "x"})
	if resp := decodeBody[errResponse](t, w); resp.Code != "invalid_parent_node_id" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSessionTabFlow(t *testing.T) {
	_, router := testEnv(t, "")
	d1 := createDoc(t, router, "# One")
	d2 := createDoc(t, router, "# Two")

	// Creation opens both pinned; the session already shows them.
	w := doJSON(t, router, http.MethodGet, "/session", nil)
	snap := decodeBody[session.SessionSnapshot](t, w)
	if len(snap.Panes) != 1 || len(snap.Panes[0].Tabs) != 2 {
		t.Fatalf("session = %+v", snap)
	}

	// Preview open of an already-open doc just activates it.
	w = doJSON(t, router, http.MethodPost, "/session/tabs", OpenTabRequest{DocumentID: d1.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("open: %d %s", w.Code, w.Body.String())
	}

	// Draft edit then flush.
	w = doJSON(t, router, http.MethodPut, "/session/documents/"+d1.ID+"/draft", DraftRequest{Content: "# One\n\nedited"})
	if w.Code != http.StatusOK {
		t.Fatalf("edit: %d %s", w.Code, w.Body.String())
	}
	if got := decodeBody[session.DocSnapshot](t, w); got.State != session.StateDirty {
		t.Errorf("state after edit = %s", got.State)
	}
	w = doJSON(t, router, http.MethodPost, "/session/documents/"+d1.ID+"/flush", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("flush: %d %s", w.Code, w.Body.String())
	}
	if got := decodeBody[session.DocSnapshot](t, w); got.State != session.StateClean {
		t.Errorf("state after flush = %s", got.State)
	}

	// The flush landed in the store.
	w = doJSON(t, router, http.MethodGet, "/documents/"+d1.ID, nil)
	if got := decodeBody[models.Document](t, w); got.Content != "# One\n\nedited" {
		t.Errorf("content = %q", got.Content)
	}

	// Close a tab.
	paneID := snap.ActivePaneID
	w = doJSON(t, router, http.MethodPost, "/session/tabs/close", TabTargetRequest{PaneID: paneID, DocumentID: d2.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("close: %d %s", w.Code, w.Body.String())
	}
	snap = decodeBody[session.SessionSnapshot](t, w)
	if len(snap.Panes[0].Tabs) != 1 || snap.Panes[0].Tabs[0].ID != d1.ID {
		t.Errorf("tabs = %+v", snap.Panes[0].Tabs)
	}
}

func TestSessionPaneFlow(t *testing.T) {
	_, router := testEnv(t, "")
	d1 := createDoc(t, router, "# One")

	w := doJSON(t, router, http.MethodGet, "/session", nil)
	paneID := decodeBody[session.SessionSnapshot](t, w).ActivePaneID

	w = doJSON(t, router, http.MethodPost, "/session/panes/split", SplitPaneRequest{
		PaneID: paneID, Direction: "vertical", ContainerExtent: 2000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("split: %d %s", w.Code, w.Body.String())
	}
	pane := decodeBody[session.PaneSnapshot](t, w)
	if len(pane.Tabs) != 1 || pane.Tabs[0].ID != d1.ID {
		t.Errorf("seeded pane = %+v", pane)
	}

	// Direction is locked to the first split.
	w = doJSON(t, router, http.MethodPost, "/session/panes/split", SplitPaneRequest{
		PaneID: pane.ID, Direction: "horizontal", ContainerExtent: 2000,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("locked split: %d", w.Code)
	}
	if resp := decodeBody[errResponse](t, w); resp.Code != "direction_locked" {
		t.Errorf("code = %q", resp.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/session/panes/close", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close pane: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/session/panes/close", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("close last pane: %d", w.Code)
	}
}

func TestSessionFilter(t *testing.T) {
	_, router := testEnv(t, "")
	doc := createDoc(t, router, "# Tagged")
	doJSON(t, router, http.MethodPut, "/documents/"+doc.ID+"/tags", SetTagsRequest{Tags: []string{"work"}})

	w := doJSON(t, router, http.MethodPut, "/session/filter", FilterRequest{Tag: "Work"})
	if w.Code != http.StatusOK {
		t.Fatalf("filter: %d %s", w.Code, w.Body.String())
	}
	if got := decodeBody[map[string]string](t, w); got["tag"] != "work" {
		t.Errorf("tag = %q", got["tag"])
	}

	w = doJSON(t, router, http.MethodDelete, "/session/filter", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("clear filter: %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token: %d %s", w.Code, w.Body.String())
	}
}

func TestInvalidJSONBody(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMaxPanesOverHTTP(t *testing.T) {
	_, router := testEnv(t, "")
	createDoc(t, router, "# Doc")

	split := func() *httptest.ResponseRecorder {
		w := doJSON(t, router, http.MethodGet, "/session", nil)
		paneID := decodeBody[session.SessionSnapshot](t, w).ActivePaneID
		return doJSON(t, router, http.MethodPost, "/session/panes/split", SplitPaneRequest{
			PaneID: paneID, Direction: "vertical", ContainerExtent: 100000,
		})
	}
	for i := 0; i < 2; i++ {
		if w := split(); w.Code != http.StatusCreated {
			t.Fatalf("split %d: %d %s", i, w.Code, w.Body.String())
		}
	}
	w := split()
	if w.Code != http.StatusConflict {
		t.Fatalf("over-limit split: %d", w.Code)
	}
	if resp := decodeBody[errResponse](t, w); resp.Code != "max_panes_reached" {
		t.Errorf("code = %q", resp.Code)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
