package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docstore"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/tree"
)

// Handler holds API route handlers.
type Handler struct {
	svc   *docstore.Service
	tree  *tree.Projection
	coord *session.Coordinator
}

// NewHandler creates a new Handler.
func NewHandler(svc *docstore.Service, proj *tree.Projection, coord *session.Coordinator) *Handler {
	return &Handler{svc: svc, tree: proj, coord: coord}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List live documents with optional tag filter
//	@Tags			documents
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag"
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Total: len(docs)})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a single document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	models.Document
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateDocument handles POST /api/documents.
//
// The document is created through the session coordinator: it opens pinned
// in the active pane and inherits the active tag filter.
//
//	@Summary		Create a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Initial content"
//	@Success		201		{object}	models.Document
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	doc, err := h.coord.CreateDocument(r.Context(), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/{id}.
//
//	@Summary		Replace document content
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Document id"
//	@Param			body	body		UpdateDocumentRequest	true	"New content"
//	@Success		200		{object}	models.Document
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	doc, err := h.svc.UpdateDocument(r.Context(), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id} (soft delete).
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreDocument handles POST /api/documents/{id}/restore.
//
// Restoring clears the soft-delete flag; existing tree references become
// valid again without any tree mutation.
func (h *Handler) RestoreDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.RestoreDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.coord.RefreshList(r.Context())
	h.coord.RefreshTags(r.Context())
	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SetTags handles PUT /api/documents/{id}/tags.
func (h *Handler) SetTags(w http.ResponseWriter, r *http.Request) {
	var req SetTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.coord.SetDocumentTags(r.Context(), id, req.Tags); err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TagListResponse{Tags: tags})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over live documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tree handles GET /api/tree?parent=.
//
// The root listing starts with the synthetic Uncategorized folder;
// references to soft-deleted documents are filtered out.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.tree.ListChildren(r.URL.Query().Get("parent"))
	if err != nil {
		writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []models.WorkspaceNode{}
	}
	writeJSON(w, http.StatusOK, TreeResponse{Nodes: nodes})
}

// CreateFolder handles POST /api/tree/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	node, err := h.svc.CreateFolder(r.Context(), req.ParentID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// CreateNoteRef handles POST /api/tree/refs.
func (h *Handler) CreateNoteRef(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	node, err := h.svc.CreateNoteRef(r.Context(), req.ParentID, req.DocumentID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// RenameNode handles PUT /api/tree/nodes/{nodeID}/rename.
func (h *Handler) RenameNode(w http.ResponseWriter, r *http.Request) {
	var req RenameNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.RenameNode(r.Context(), chi.URLParam(r, "nodeID"), req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNode handles PUT /api/tree/nodes/{nodeID}/move.
func (h *Handler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.MoveNode(r.Context(), chi.URLParam(r, "nodeID"), req.ParentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFolder handles DELETE /api/tree/folders/{nodeID}?mode=.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	mode := models.DeleteMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = models.DeleteDissolve
	}
	if !mode.Valid() {
		writeError(w, apperr.New(apperr.CodeInvalidNodeID, "unknown delete mode %q", mode))
		return
	}
	if err := h.coord.DeleteFolder(r.Context(), chi.URLParam(r, "nodeID"), mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
