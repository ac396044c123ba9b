package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/docstore"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/tree"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docstore.Service, proj *tree.Projection, coord *session.Coordinator, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, proj, coord)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}", h.UpdateDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Post("/documents/{id}/restore", h.RestoreDocument)
	r.Put("/documents/{id}/tags", h.SetTags)

	// Tags and search.
	r.Get("/tags", h.ListTags)
	r.Get("/search", h.Search)

	// Workspace tree.
	r.Get("/tree", h.Tree)
	r.Post("/tree/folders", h.CreateFolder)
	r.Post("/tree/refs", h.CreateNoteRef)
	r.Put("/tree/nodes/{nodeID}/rename", h.RenameNode)
	r.Put("/tree/nodes/{nodeID}/move", h.MoveNode)
	r.Delete("/tree/folders/{nodeID}", h.DeleteFolder)

	// Editing session.
	r.Get("/session", h.GetSession)
	r.Post("/session/tabs", h.OpenTab)
	r.Post("/session/tabs/select", h.SelectTab)
	r.Post("/session/tabs/close", h.CloseTab)
	r.Post("/session/tabs/close-others", h.CloseOtherTabs)
	r.Post("/session/tabs/close-right", h.CloseTabsToRight)
	r.Put("/session/documents/{id}/draft", h.EditDraft)
	r.Post("/session/documents/{id}/flush", h.FlushDraft)
	r.Post("/session/documents/{id}/retry", h.RetrySave)
	r.Post("/session/panes/split", h.SplitPane)
	r.Post("/session/panes/close", h.ClosePane)
	r.Post("/session/panes/activate", h.ActivatePane)
	r.Post("/session/panes/cycle", h.CyclePane)
	r.Put("/session/filter", h.ApplyFilter)
	r.Delete("/session/filter", h.ClearFilter)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
