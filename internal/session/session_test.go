package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// fakeStore is an in-memory Store with hook points for controlling latency
// and failure of individual calls.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*models.Document
	seq  int

	// updateHook, when set, runs before an update is applied; returning an
	// error fails the save. Blocking in it holds the save in flight.
	updateHook func(id, content string) error
	// deleteFolderHook implements DeleteFolder for tree tests.
	deleteFolderHook func(folderID string, mode models.DeleteMode) error

	updates []string // saved contents, in completion order
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*models.Document)}
}

func (f *fakeStore) add(id, content string, tags ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = &models.Document{ID: id, Title: id, Content: content, Tags: tags}
}

func (f *fakeStore) clone(d *models.Document) *models.Document {
	cp := *d
	cp.Tags = append([]string(nil), d.Tags...)
	return &cp
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
	}
	return f.clone(d), nil
}

func (f *fakeStore) CreateDocument(_ context.Context, content string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("doc-%d", f.seq)
	f.docs[id] = &models.Document{ID: id, Title: id, Content: content}
	return f.clone(f.docs[id]), nil
}

func (f *fakeStore) UpdateDocument(_ context.Context, id, content string) (*models.Document, error) {
	if hook := f.updateHook; hook != nil {
		if err := hook(id, content); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
	}
	d.Content = content
	f.updates = append(f.updates, content)
	return f.clone(d), nil
}

func (f *fakeStore) SetTags(_ context.Context, id string, tags []string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "document %s not found", id)
	}
	d.Tags = append([]string(nil), tags...)
	return f.clone(d), nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "document %s not found", id)
	}
	d.Deleted = true
	return nil
}

func (f *fakeStore) ListDocuments(_ context.Context, filterTag string) ([]models.DocumentMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DocumentMetadata
	for _, d := range f.docs {
		if d.Deleted {
			continue
		}
		if filterTag != "" && !contains(d.Tags, filterTag) {
			continue
		}
		out = append(out, models.DocumentMetadata{ID: d.ID, Title: d.Title, Tags: d.Tags})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListTags(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	for _, d := range f.docs {
		if d.Deleted {
			continue
		}
		for _, t := range d.Tags {
			seen[t] = true
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) DeleteFolder(_ context.Context, folderID string, mode models.DeleteMode) error {
	if f.deleteFolderHook != nil {
		return f.deleteFolderHook(folderID, mode)
	}
	return nil
}

func (f *fakeStore) savedContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updates...)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// fakePub records published events.
type fakePub struct {
	mu     sync.Mutex
	events []pubEvent
}

type pubEvent struct {
	typ  string
	data any
}

func (p *fakePub) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pubEvent{typ: eventType, data: data})
}

func (p *fakePub) last(eventType string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].typ == eventType {
			return p.events[i].data, true
		}
	}
	return nil, false
}

func (p *fakePub) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.typ == eventType {
			n++
		}
	}
	return n
}

// eventually polls fn until it returns true or the timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatal(msg)
}
