package session

import (
	"context"
	"sync"
	"time"

	"github.com/starford/othala/internal/apperr"
)

// SaveState is the per-document save lifecycle state.
type SaveState string

const (
	StateClean  SaveState = "clean"
	StateDirty  SaveState = "dirty"
	StateSaving SaveState = "saving"
	StateError  SaveState = "error"
)

// DocSnapshot is an immutable view of one open document's editing state.
type DocSnapshot struct {
	ID        string    `json:"id"`
	Draft     string    `json:"draft"`
	Persisted string    `json:"persisted"`
	Version   uint64    `json:"version"`
	State     SaveState `json:"state"`
	SaveError string    `json:"save_error,omitempty"`
}

// docState is the single source of truth for one open document, shared by
// every tab and pane that displays it.
type docState struct {
	id        string
	draft     string
	persisted string
	version   uint64
	state     SaveState
	saveErr   string
	refs      int // tabs across all panes referencing this document
	inflight  bool
	queued    bool
	timer     *time.Timer
	saveDone  chan struct{} // closed when the current in-flight save completes
}

// DraftTable owns the draft/version state of every open document and drives
// the autosave pipeline: debounce, at-most-one-in-flight save per document,
// queued supersession, and version-checked completion handling.
//
// A save captures the version at start; a completion whose version no longer
// matches mutates nothing except the persisted content (the store did write
// it) and immediately re-drives a save of the current draft. Wall-clock
// timestamps are never consulted: two edits in the same tick are still
// ordered by the version counter.
type DraftTable struct {
	mu     sync.Mutex
	store  Store
	delay  time.Duration
	notify func(DocSnapshot)
	docs   map[string]*docState
}

// NewDraftTable creates a draft table with the given autosave debounce
// delay. notify, if non-nil, is invoked after every state change, outside
// the table's lock.
func NewDraftTable(store Store, delay time.Duration, notify func(DocSnapshot)) *DraftTable {
	return &DraftTable{
		store:  store,
		delay:  delay,
		notify: notify,
		docs:   make(map[string]*docState),
	}
}

func snapshotOf(st *docState) DocSnapshot {
	return DocSnapshot{
		ID:        st.id,
		Draft:     st.draft,
		Persisted: st.persisted,
		Version:   st.version,
		State:     st.state,
		SaveError: st.saveErr,
	}
}

func (t *DraftTable) emit(snap DocSnapshot) {
	if t.notify != nil {
		t.notify(snap)
	}
}

// Open loads a document into the table (or bumps its refcount when already
// open) and returns its snapshot. Soft-deleted documents are refused.
func (t *DraftTable) Open(ctx context.Context, id string) (DocSnapshot, error) {
	t.mu.Lock()
	if st, ok := t.docs[id]; ok {
		st.refs++
		snap := snapshotOf(st)
		t.mu.Unlock()
		return snap, nil
	}
	t.mu.Unlock()

	doc, err := t.store.GetDocument(ctx, id)
	if err != nil {
		return DocSnapshot{}, err
	}
	if doc.Deleted {
		return DocSnapshot{}, apperr.New(apperr.CodeNotFound, "document %s is deleted", id)
	}

	t.mu.Lock()
	st, ok := t.docs[id]
	if ok {
		// Lost a race with a concurrent Open; the loaded content is stale
		// relative to whatever state already exists.
		st.refs++
	} else {
		st = &docState{
			id:        id,
			draft:     doc.Content,
			persisted: doc.Content,
			state:     StateClean,
			refs:      1,
		}
		t.docs[id] = st
	}
	snap := snapshotOf(st)
	t.mu.Unlock()
	return snap, nil
}

// Retain bumps the refcount of an already-open document (e.g. when a pane
// split seeds a second tab for it). Returns false if the document is not
// open.
func (t *DraftTable) Retain(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.docs[id]
	if !ok {
		return false
	}
	st.refs++
	return true
}

// Release drops one reference. When the last reference goes, the state is
// destroyed; callers must flush first if they care about the draft.
func (t *DraftTable) Release(id string) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	st.refs--
	if st.refs <= 0 {
		t.stopTimerLocked(st)
		delete(t.docs, id)
	}
	t.mu.Unlock()
}

// Drop destroys a document's state regardless of refcount. Used when the
// document has been deleted out from under the session.
func (t *DraftTable) Drop(id string) {
	t.mu.Lock()
	if st, ok := t.docs[id]; ok {
		t.stopTimerLocked(st)
		delete(t.docs, id)
	}
	t.mu.Unlock()
}

// Snapshot returns the current state of an open document.
func (t *DraftTable) Snapshot(id string) (DocSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.docs[id]
	if !ok {
		return DocSnapshot{}, false
	}
	return snapshotOf(st), true
}

// Refs returns the refcount for id (0 when not open).
func (t *DraftTable) Refs(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.docs[id]; ok {
		return st.refs
	}
	return 0
}

// OpenIDs returns the ids of all open documents.
func (t *DraftTable) OpenIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.docs))
	for id := range t.docs {
		out = append(out, id)
	}
	return out
}

// Busy reports whether id has unsaved or in-flight work, which blocks
// preview-tab replacement.
func (t *DraftTable) Busy(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.docs[id]
	if !ok {
		return false
	}
	return st.inflight || st.state != StateClean
}

// SetDraft applies a local edit. Equal content is a no-op. Otherwise the
// version is bumped and the save state recomputed: an edit that reverts the
// draft to the persisted content is clean, anything else is dirty and
// (re)starts the autosave debounce timer.
func (t *DraftTable) SetDraft(id, content string) (DocSnapshot, bool) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return DocSnapshot{}, false
	}
	if content == st.draft {
		snap := snapshotOf(st)
		t.mu.Unlock()
		return snap, false
	}
	st.version++
	st.draft = content
	if st.draft == st.persisted && !st.inflight {
		st.state = StateClean
		st.saveErr = ""
		t.stopTimerLocked(st)
	} else {
		if !st.inflight {
			st.state = StateDirty // error → dirty on next edit
			st.saveErr = ""
		}
		t.resetTimerLocked(st)
	}
	snap := snapshotOf(st)
	t.mu.Unlock()
	t.emit(snap)
	return snap, true
}

// ApplyPersisted records a fresh persisted read for id, issued when the
// document's version was issuedVersion. The persisted content always
// updates; the draft is touched only when no local edit happened since the
// read was issued, preserving the newer edit otherwise.
func (t *DraftTable) ApplyPersisted(id, content string, issuedVersion uint64) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	st.persisted = content
	if st.version == issuedVersion && !st.inflight && st.state == StateClean && st.draft != content {
		st.draft = content
		st.version++
	}
	if st.draft == st.persisted && !st.inflight {
		st.state = StateClean
		st.saveErr = ""
		t.stopTimerLocked(st)
	}
	snap := snapshotOf(st)
	t.mu.Unlock()
	t.emit(snap)
}

// RetryNow bypasses the debounce and saves the latest draft immediately.
// Only meaningful in dirty or error state.
func (t *DraftTable) RetryNow(id string) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok || (st.state != StateDirty && st.state != StateError) {
		t.mu.Unlock()
		return
	}
	t.stopTimerLocked(st)
	t.startSaveLocked(st)
	snap := snapshotOf(st)
	t.mu.Unlock()
	t.emit(snap)
}

// Flush is the universal navigation guard: it returns immediately when the
// document is clean, otherwise awaits any in-flight save (never cancelling
// it), saves once more if still dirty, and reports failure as save_blocked
// without discarding the draft. Idempotent on clean documents.
func (t *DraftTable) Flush(ctx context.Context, id string) error {
	attempted := false
	for {
		t.mu.Lock()
		st, ok := t.docs[id]
		if !ok {
			t.mu.Unlock()
			return nil
		}
		if st.inflight {
			done := st.saveDone
			t.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return apperr.New(apperr.CodeSaveBlocked, "flush %s: %v", id, ctx.Err())
			}
		}
		t.stopTimerLocked(st)
		switch st.state {
		case StateClean:
			t.mu.Unlock()
			return nil
		case StateError:
			if attempted {
				msg := st.saveErr
				t.mu.Unlock()
				return apperr.New(apperr.CodeSaveBlocked, "flush %s: %s", id, msg)
			}
			attempted = true
			t.startSaveLocked(st)
			snap := snapshotOf(st)
			t.mu.Unlock()
			t.emit(snap)
		case StateDirty:
			attempted = true
			t.startSaveLocked(st)
			snap := snapshotOf(st)
			t.mu.Unlock()
			t.emit(snap)
		default:
			t.mu.Unlock()
			return nil
		}
	}
}

// timerFired runs when the debounce delay elapses without further edits.
func (t *DraftTable) timerFired(id string) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok || st.draft == st.persisted {
		t.mu.Unlock()
		return
	}
	t.startSaveLocked(st)
	snap := snapshotOf(st)
	t.mu.Unlock()
	t.emit(snap)
}

// startSaveLocked begins a save of the current draft, or records a queued
// request when one is already in flight. Caller holds t.mu.
func (t *DraftTable) startSaveLocked(st *docState) {
	if st.inflight {
		// At most one in-flight save per document; any number of
		// superseding requests collapse into a single queued retry that
		// will use the then-current draft.
		st.queued = true
		return
	}
	st.inflight = true
	st.state = StateSaving
	st.saveErr = ""
	st.saveDone = make(chan struct{})
	version := st.version
	content := st.draft
	go t.runSave(st.id, version, content)
}

func (t *DraftTable) runSave(id string, version uint64, content string) {
	// Saves run to completion even if the initiating caller is gone; flush
	// awaits them rather than cancelling.
	_, err := t.store.UpdateDocument(context.Background(), id, content)
	t.onSaveDone(id, version, content, err)
}

func (t *DraftTable) onSaveDone(id string, version uint64, content string, err error) {
	t.mu.Lock()
	st, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	st.inflight = false
	close(st.saveDone)

	stale := st.version != version
	switch {
	case err == nil && !stale:
		st.persisted = content
		st.state = StateClean
		st.saveErr = ""
	case err == nil && stale:
		// The store persisted this content, but the draft has moved on.
		st.persisted = content
		if st.draft == st.persisted {
			st.state = StateClean
			st.saveErr = ""
		} else {
			st.state = StateDirty
		}
	case err != nil && !stale:
		st.state = StateError
		st.saveErr = err.Error()
	default: // err != nil && stale
		if st.draft == st.persisted {
			st.state = StateClean
			st.saveErr = ""
		} else {
			st.state = StateDirty
		}
	}

	redrive := (stale || st.queued) && st.state == StateDirty
	st.queued = false
	if redrive {
		t.startSaveLocked(st)
	}
	snap := snapshotOf(st)
	t.mu.Unlock()
	t.emit(snap)
}

func (t *DraftTable) resetTimerLocked(st *docState) {
	if st.timer == nil {
		id := st.id
		st.timer = time.AfterFunc(t.delay, func() { t.timerFired(id) })
		return
	}
	st.timer.Reset(t.delay)
}

func (t *DraftTable) stopTimerLocked(st *docState) {
	if st.timer != nil {
		st.timer.Stop()
	}
}
