package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/session"
)

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// OpenTab handles POST /api/session/tabs. Pinned opens keep the tab;
// unpinned opens reuse the preview slot.
func (h *Handler) OpenTab(w http.ResponseWriter, r *http.Request) {
	var req OpenTabRequest
	if !decode(w, r, &req) {
		return
	}
	var (
		snap session.DocSnapshot
		err  error
	)
	if req.Pinned {
		snap, err = h.coord.OpenPinned(r.Context(), req.DocumentID)
	} else {
		snap, err = h.coord.OpenFromList(r.Context(), req.DocumentID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SelectTab handles POST /api/session/tabs/select.
func (h *Handler) SelectTab(w http.ResponseWriter, r *http.Request) {
	var req TabTargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.coord.SelectTab(r.Context(), req.PaneID, req.DocumentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// CloseTab handles POST /api/session/tabs/close.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	var req TabTargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.coord.CloseTab(r.Context(), req.PaneID, req.DocumentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// CloseOtherTabs handles POST /api/session/tabs/close-others.
func (h *Handler) CloseOtherTabs(w http.ResponseWriter, r *http.Request) {
	var req TabTargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.coord.CloseOthers(r.Context(), req.PaneID, req.DocumentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// CloseTabsToRight handles POST /api/session/tabs/close-right.
func (h *Handler) CloseTabsToRight(w http.ResponseWriter, r *http.Request) {
	var req TabTargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.coord.CloseToRight(r.Context(), req.PaneID, req.DocumentID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// EditDraft handles PUT /api/session/documents/{id}/draft. The edit lands
// in the shared draft state; the debounced autosave picks it up.
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req DraftRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.coord.Edit(chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// FlushDraft handles POST /api/session/documents/{id}/flush.
func (h *Handler) FlushDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.coord.Flush(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	snap, ok := h.coord.Drafts().Snapshot(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RetrySave handles POST /api/session/documents/{id}/retry.
func (h *Handler) RetrySave(w http.ResponseWriter, r *http.Request) {
	h.coord.RetryNow(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusAccepted)
}

// SplitPane handles POST /api/session/panes/split.
func (h *Handler) SplitPane(w http.ResponseWriter, r *http.Request) {
	var req SplitPaneRequest
	if !decode(w, r, &req) {
		return
	}
	dir := session.SplitDirection(req.Direction)
	if !dir.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("direction must be horizontal or vertical"))
		return
	}
	pane, err := h.coord.SplitPane(req.PaneID, dir, req.ContainerExtent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pane)
}

// ClosePane handles POST /api/session/panes/close.
func (h *Handler) ClosePane(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.ClosePane(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// ActivatePane handles POST /api/session/panes/activate.
func (h *Handler) ActivatePane(w http.ResponseWriter, r *http.Request) {
	var req PaneTargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.coord.SwitchPane(req.PaneID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.coord.Snapshot())
}

// CyclePane handles POST /api/session/panes/cycle.
func (h *Handler) CyclePane(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coord.CyclePane())
}

// ApplyFilter handles PUT /api/session/filter.
func (h *Handler) ApplyFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if !decode(w, r, &req) {
		return
	}
	h.coord.ApplyFilter(r.Context(), req.Tag)
	writeJSON(w, http.StatusOK, map[string]string{"tag": h.coord.Filter()})
}

// ClearFilter handles DELETE /api/session/filter.
func (h *Handler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	h.coord.ClearFilter(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
