package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Config tunes the session coordinator.
type Config struct {
	AutosaveDelay        time.Duration
	MaxPanes             int
	MinPaneExtent        int
	ShutdownFlushTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AutosaveDelay <= 0 {
		c.AutosaveDelay = 1500 * time.Millisecond
	}
	if c.MaxPanes <= 0 {
		c.MaxPanes = 3
	}
	if c.MinPaneExtent <= 0 {
		c.MinPaneExtent = 320
	}
	if c.ShutdownFlushTimeout <= 0 {
		c.ShutdownFlushTimeout = 5 * time.Second
	}
	return c
}

// PaneSnapshot is the serializable view of one pane.
type PaneSnapshot struct {
	ID       string     `json:"id"`
	Tabs     []TabEntry `json:"tabs"`
	ActiveID string     `json:"active_id,omitempty"`
}

// SessionSnapshot is the full serializable session state.
type SessionSnapshot struct {
	Panes        []PaneSnapshot         `json:"panes"`
	ActivePaneID string                 `json:"active_pane_id"`
	Axis         SplitDirection         `json:"axis,omitempty"`
	Filter       string                 `json:"filter,omitempty"`
	Documents    map[string]DocSnapshot `json:"documents"`
}

// Coordinator ties the draft table, pane layout, and tag filter together
// and runs every workflow that spans more than one of them. It is safe for
// concurrent use: layout and filter state is guarded by one mutex, document
// state lives in the DraftTable with its own locking, and store round-trips
// happen outside the mutex with version/request-id checks on completion.
type Coordinator struct {
	mu     sync.Mutex
	store  Store
	pub    Publisher
	logger *slog.Logger
	cfg    Config

	drafts *DraftTable
	layout *PaneLayout
	filter *TagFilter
	queue  *opQueue

	listReq atomic.Uint64
	tagsReq atomic.Uint64
}

// NewCoordinator creates a coordinator with a single empty pane.
func NewCoordinator(store Store, pub Publisher, logger *slog.Logger, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()
	c := &Coordinator{
		store:  store,
		pub:    pub,
		logger: logger,
		cfg:    cfg,
		layout: NewPaneLayout(cfg.MaxPanes, cfg.MinPaneExtent),
		filter: &TagFilter{},
		queue:  newOpQueue(),
	}
	c.drafts = NewDraftTable(store, cfg.AutosaveDelay, c.onDocState)
	return c
}

// onDocState relays every document state change to subscribers. A document
// reaching clean means a save landed, so the list is refreshed to pick up
// any title change; until then the list keeps showing the saved state, not
// the draft.
func (c *Coordinator) onDocState(snap DocSnapshot) {
	c.pub.Publish(EventDocumentState, snap)
	if snap.State == StateClean {
		go c.RefreshList(context.Background())
	}
}

// Drafts exposes the draft table for read-only inspection in handlers.
func (c *Coordinator) Drafts() *DraftTable { return c.drafts }

// Snapshot returns the full session state.
func (c *Coordinator) Snapshot() SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() SessionSnapshot {
	out := SessionSnapshot{
		ActivePaneID: c.layout.ActivePane().ID,
		Axis:         c.layout.Axis(),
		Filter:       c.filter.Selected(),
		Documents:    make(map[string]DocSnapshot),
	}
	for _, p := range c.layout.Panes() {
		out.Panes = append(out.Panes, paneSnapshot(p))
	}
	for _, id := range c.drafts.OpenIDs() {
		if snap, ok := c.drafts.Snapshot(id); ok {
			out.Documents[id] = snap
		}
	}
	return out
}

func paneSnapshot(p *Pane) PaneSnapshot {
	return PaneSnapshot{ID: p.ID, Tabs: p.Session.Tabs(), ActiveID: p.Session.ActiveID()}
}

func (c *Coordinator) publishTabsLocked(p *Pane) {
	c.pub.Publish(EventTabsChanged, paneSnapshot(p))
}

func (c *Coordinator) publishLayoutLocked() {
	c.pub.Publish(EventLayoutChanged, c.snapshotLocked())
}

// OpenFromList opens id in the active pane as a preview tab. The previous
// active document is flushed first; a flush failure aborts the open with
// save_blocked and leaves the session untouched.
func (c *Coordinator) OpenFromList(ctx context.Context, id string) (DocSnapshot, error) {
	return c.open(ctx, id, true)
}

// OpenPinned opens id in the active pane as a pinned tab (or pins an
// existing tab).
func (c *Coordinator) OpenPinned(ctx context.Context, id string) (DocSnapshot, error) {
	return c.open(ctx, id, false)
}

func (c *Coordinator) open(ctx context.Context, id string, preview bool) (DocSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pane := c.layout.ActivePane()
	sess := pane.Session

	if prev := sess.ActiveID(); prev != "" && prev != id {
		if err := c.drafts.Flush(ctx, prev); err != nil {
			return DocSnapshot{}, err
		}
	}

	if sess.Contains(id) {
		if preview {
			sess.Activate(id)
		} else {
			sess.OpenPinned(id, false)
		}
		c.publishTabsLocked(pane)
		snap, _ := c.drafts.Snapshot(id)
		return snap, nil
	}

	snap, err := c.drafts.Open(ctx, id)
	if err != nil {
		return DocSnapshot{}, err
	}

	previewID := sess.PreviewID()
	canReplace := previewID == "" || !c.drafts.Busy(previewID)
	var evicted string
	if preview {
		evicted = sess.OpenFromList(id, canReplace)
	} else {
		evicted = sess.OpenPinned(id, canReplace)
	}
	if evicted != "" && evicted != id {
		c.drafts.Release(evicted)
	}
	c.publishTabsLocked(pane)
	return snap, nil
}

// SelectTab activates an already-open tab in the given pane, flushing the
// pane's current document first.
func (c *Coordinator) SelectTab(ctx context.Context, paneID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pane, ok := c.layout.Find(paneID)
	if !ok {
		return apperr.New(apperr.CodePaneNotFound, "pane %s not found", paneID)
	}
	if !pane.Session.Contains(id) {
		return apperr.New(apperr.CodeNotFound, "tab %s not open in pane %s", id, paneID)
	}
	if prev := pane.Session.ActiveID(); prev != "" && prev != id {
		if err := c.drafts.Flush(ctx, prev); err != nil {
			return err
		}
	}
	pane.Session.Activate(id)
	if err := c.layout.SwitchActivePane(paneID); err != nil {
		return err
	}
	c.publishTabsLocked(pane)
	return nil
}

// Edit applies a draft edit to an open document and promotes any preview
// tab displaying it.
func (c *Coordinator) Edit(id, content string) (DocSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.drafts.Snapshot(id)
	if !ok {
		return DocSnapshot{}, apperr.New(apperr.CodeNotFound, "document %s not open", id)
	}
	snap, _ = c.drafts.SetDraft(id, content)
	for _, p := range c.layout.Panes() {
		if p.Session.PromoteOnEdit(id) {
			c.publishTabsLocked(p)
		}
	}
	return snap, nil
}

// CloseTab closes id in the given pane. When this is the document's last
// open tab, its draft is flushed first; a flush failure aborts the close so
// unsaved work is never discarded.
func (c *Coordinator) CloseTab(ctx context.Context, paneID, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pane, ok := c.layout.Find(paneID)
	if !ok {
		return apperr.New(apperr.CodePaneNotFound, "pane %s not found", paneID)
	}
	if !pane.Session.Contains(id) {
		return apperr.New(apperr.CodeNotFound, "tab %s not open in pane %s", id, paneID)
	}
	if c.drafts.Refs(id) == 1 {
		if err := c.drafts.Flush(ctx, id); err != nil {
			return err
		}
	}
	pane.Session.Close(id)
	c.drafts.Release(id)
	c.publishTabsLocked(pane)
	return nil
}

// CloseOthers closes every tab except id in the given pane. All affected
// last-reference drafts are flushed before any tab is removed, so a single
// flush failure aborts the whole operation.
func (c *Coordinator) CloseOthers(ctx context.Context, paneID, id string) error {
	return c.closeBulk(ctx, paneID, id, func(s *TabSession) []string { return s.CloseOthers(id) },
		func(s *TabSession) []string {
			var out []string
			for _, t := range s.Tabs() {
				if t.ID != id {
					out = append(out, t.ID)
				}
			}
			return out
		})
}

// CloseToRight closes every tab to the right of id in the given pane, with
// the same flush-first guarantee as CloseOthers.
func (c *Coordinator) CloseToRight(ctx context.Context, paneID, id string) error {
	return c.closeBulk(ctx, paneID, id, func(s *TabSession) []string { return s.CloseToRightOf(id) },
		func(s *TabSession) []string {
			tabs := s.Tabs()
			for i, t := range tabs {
				if t.ID == id {
					var out []string
					for _, r := range tabs[i+1:] {
						out = append(out, r.ID)
					}
					return out
				}
			}
			return nil
		})
}

func (c *Coordinator) closeBulk(ctx context.Context, paneID, id string, close func(*TabSession) []string, victims func(*TabSession) []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pane, ok := c.layout.Find(paneID)
	if !ok {
		return apperr.New(apperr.CodePaneNotFound, "pane %s not found", paneID)
	}
	if !pane.Session.Contains(id) {
		return apperr.New(apperr.CodeNotFound, "tab %s not open in pane %s", id, paneID)
	}
	for _, v := range victims(pane.Session) {
		if c.drafts.Refs(v) == 1 {
			if err := c.drafts.Flush(ctx, v); err != nil {
				return err
			}
		}
	}
	for _, v := range close(pane.Session) {
		c.drafts.Release(v)
	}
	c.publishTabsLocked(pane)
	return nil
}

// Flush persists any pending draft for id, blocking until done.
func (c *Coordinator) Flush(ctx context.Context, id string) error {
	return c.drafts.Flush(ctx, id)
}

// RetryNow retries a failed or pending save immediately.
func (c *Coordinator) RetryNow(id string) {
	c.drafts.RetryNow(id)
}

// SplitPane splits paneID in the given direction. The new pane is seeded
// with the source pane's active document as a pinned tab.
func (c *Coordinator) SplitPane(paneID string, dir SplitDirection, containerExtent int) (PaneSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	np, err := c.layout.Split(paneID, dir, containerExtent)
	if err != nil {
		return PaneSnapshot{}, err
	}
	if seeded := np.Session.ActiveID(); seeded != "" {
		c.drafts.Retain(seeded)
	}
	c.publishLayoutLocked()
	return paneSnapshot(np), nil
}

// ClosePane closes the active pane. Last-reference drafts among its tabs
// are flushed first; the merged layout keeps every other pane untouched.
func (c *Coordinator) ClosePane(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pane := c.layout.ActivePane()
	if c.layout.PaneCount() > 1 {
		for _, t := range pane.Session.Tabs() {
			if c.drafts.Refs(t.ID) == 1 {
				if err := c.drafts.Flush(ctx, t.ID); err != nil {
					return err
				}
			}
		}
	}
	closed, err := c.layout.CloseActivePane()
	if err != nil {
		return err
	}
	for _, t := range closed.Session.Tabs() {
		c.drafts.Release(t.ID)
	}
	c.publishLayoutLocked()
	return nil
}

// SwitchPane moves focus to paneID.
func (c *Coordinator) SwitchPane(paneID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.layout.SwitchActivePane(paneID); err != nil {
		return err
	}
	c.publishLayoutLocked()
	return nil
}

// CyclePane moves focus to the next pane in layout order.
func (c *Coordinator) CyclePane() PaneSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.layout.CycleNextPane()
	c.publishLayoutLocked()
	return paneSnapshot(p)
}

// ApplyFilter narrows the document list to one tag. Blank tags are ignored.
func (c *Coordinator) ApplyFilter(ctx context.Context, tag string) {
	c.mu.Lock()
	changed := c.filter.Apply(tag)
	selected := c.filter.Selected()
	c.mu.Unlock()
	if !changed {
		return
	}
	c.pub.Publish(EventFilterChanged, map[string]string{"tag": selected})
	c.refreshList(ctx, selected)
}

// ClearFilter removes the tag filter.
func (c *Coordinator) ClearFilter(ctx context.Context) {
	c.mu.Lock()
	changed := c.filter.Clear()
	c.mu.Unlock()
	if !changed {
		return
	}
	c.pub.Publish(EventFilterChanged, map[string]string{"tag": ""})
	c.refreshList(ctx, "")
}

// Filter returns the selected tag.
func (c *Coordinator) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.Selected()
}

// RefreshList re-fetches the document list under the current filter and
// publishes it. Stale responses are discarded: only the latest issued
// request may publish, regardless of store response ordering.
func (c *Coordinator) RefreshList(ctx context.Context) {
	c.mu.Lock()
	tag := c.filter.Selected()
	c.mu.Unlock()
	c.refreshList(ctx, tag)
}

func (c *Coordinator) refreshList(ctx context.Context, tag string) {
	req := c.listReq.Add(1)
	docs, err := c.store.ListDocuments(ctx, tag)
	if err != nil {
		c.logger.Error("list refresh failed", "error", err)
		return
	}
	if c.listReq.Load() != req {
		return // a newer request was issued; this response is stale
	}
	c.pub.Publish(EventListUpdated, docs)
}

// RefreshTags re-fetches the tag catalog, publishes it, and reconciles the
// filter: a selected tag that vanished from the catalog is cleared and the
// unfiltered list republished.
func (c *Coordinator) RefreshTags(ctx context.Context) {
	req := c.tagsReq.Add(1)
	tags, err := c.store.ListTags(ctx)
	if err != nil {
		c.logger.Error("tags refresh failed", "error", err)
		return
	}
	if c.tagsReq.Load() != req {
		return
	}
	c.pub.Publish(EventTagsUpdated, tags)

	c.mu.Lock()
	cleared := c.filter.SyncCatalog(tags)
	c.mu.Unlock()
	if cleared {
		c.pub.Publish(EventFilterChanged, map[string]string{"tag": ""})
		c.refreshList(ctx, "")
	}
}

// SetDocumentTags rewrites a document's tag set. The draft is flushed
// first so the rewrite starts from saved content, the store result is
// applied back through the version guard, and tag edits for the same
// document are serialized in submission order.
func (c *Coordinator) SetDocumentTags(ctx context.Context, id string, tags []string) error {
	err := c.queue.run("doc:"+id, func() error {
		if err := c.drafts.Flush(ctx, id); err != nil {
			return err
		}
		var issued uint64
		snap, open := c.drafts.Snapshot(id)
		if open {
			issued = snap.Version
		}
		doc, err := c.store.SetTags(ctx, id, tags)
		if err != nil {
			return err
		}
		if open {
			c.drafts.ApplyPersisted(id, doc.Content, issued)
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.RefreshTags(ctx)
	c.RefreshList(ctx)
	return nil
}

// DeleteFolder deletes a folder in the given mode, then reconciles the
// session: open documents that are no longer live are evicted from every
// pane. The active draft is flushed first so the two-phase workflow never
// races an autosave.
func (c *Coordinator) DeleteFolder(ctx context.Context, folderID string, mode models.DeleteMode) error {
	err := c.queue.run("tree", func() error {
		c.mu.Lock()
		active := c.layout.ActivePane().Session.ActiveID()
		c.mu.Unlock()
		if active != "" {
			if err := c.drafts.Flush(ctx, active); err != nil {
				return err
			}
		}
		if err := c.store.DeleteFolder(ctx, folderID, mode); err != nil {
			return err
		}
		return c.evictDeadDocuments(ctx)
	})
	if err != nil {
		return err
	}
	c.pub.Publish(EventTreeUpdated, map[string]string{"node_id": folderID})
	c.RefreshList(ctx)
	c.RefreshTags(ctx)
	return nil
}

// evictDeadDocuments closes tabs for open documents that are no longer in
// the live list.
func (c *Coordinator) evictDeadDocuments(ctx context.Context) error {
	docs, err := c.store.ListDocuments(ctx, "")
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(docs))
	for _, d := range docs {
		live[d.ID] = true
	}
	for _, id := range c.drafts.OpenIDs() {
		if !live[id] {
			c.evictDocument(id)
		}
	}
	return nil
}

// DeleteDocument soft-deletes a document and evicts its tabs.
func (c *Coordinator) DeleteDocument(ctx context.Context, id string) error {
	err := c.queue.run("doc:"+id, func() error {
		return c.store.DeleteDocument(ctx, id)
	})
	if err != nil {
		return err
	}
	c.evictDocument(id)
	c.pub.Publish(EventTreeUpdated, map[string]string{"document_id": id})
	c.RefreshList(ctx)
	c.RefreshTags(ctx)
	return nil
}

// CreateDocument creates a document and opens it pinned in the active
// pane. With a tag filter active, the new document is tagged with the
// selected tag so it appears in the list the user is looking at.
func (c *Coordinator) CreateDocument(ctx context.Context, content string) (*models.Document, error) {
	doc, err := c.store.CreateDocument(ctx, content)
	if err != nil {
		return nil, err
	}
	if tag := c.Filter(); tag != "" {
		if tagged, err := c.store.SetTags(ctx, doc.ID, []string{tag}); err == nil {
			doc = tagged
		} else {
			c.logger.Warn("tagging new document failed", "id", doc.ID, "error", err)
		}
	}
	if _, err := c.OpenPinned(ctx, doc.ID); err != nil {
		return doc, err
	}
	c.RefreshList(ctx)
	c.RefreshTags(ctx)
	return doc, nil
}

// HandleVaultEvent reacts to a file change observed on disk. Edits to open
// documents are re-read and applied through the version guard, so an
// external write never clobbers a newer local draft; deletions evict.
func (c *Coordinator) HandleVaultEvent(kind, id string) {
	ctx := context.Background()
	switch kind {
	case "deleted":
		c.evictDocument(id)
	default:
		if _, open := c.drafts.Snapshot(id); open {
			c.refreshDocument(ctx, id)
		}
	}
	c.pub.Publish(EventTreeUpdated, map[string]string{"document_id": id})
	c.RefreshList(ctx)
	c.RefreshTags(ctx)
}

// refreshDocument re-reads id from the store and applies the persisted
// content with the version captured at issue time.
func (c *Coordinator) refreshDocument(ctx context.Context, id string) {
	snap, ok := c.drafts.Snapshot(id)
	if !ok {
		return
	}
	doc, err := c.store.GetDocument(ctx, id)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			c.evictDocument(id)
			return
		}
		c.logger.Error("document refresh failed", "id", id, "error", err)
		return
	}
	if doc.Deleted {
		c.evictDocument(id)
		return
	}
	c.drafts.ApplyPersisted(id, doc.Content, snap.Version)
}

// evictDocument closes every tab showing id and drops its draft state.
func (c *Coordinator) evictDocument(id string) {
	c.mu.Lock()
	changed := false
	for _, p := range c.layout.Panes() {
		if p.Session.Close(id) {
			changed = true
		}
	}
	c.drafts.Drop(id)
	if changed {
		c.publishLayoutLocked()
	}
	c.mu.Unlock()
}

// Shutdown flushes every open document within the configured timeout and
// reports the combined failures.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownFlushTimeout)
	defer cancel()
	var errs []error
	for _, id := range c.drafts.OpenIDs() {
		if err := c.drafts.Flush(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
