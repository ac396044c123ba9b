package session

// TabEntry is one open tab. A preview tab is ephemeral: casual browsing
// replaces it in place instead of growing the tab list, until an edit or an
// explicit pin promotes it.
type TabEntry struct {
	ID      string `json:"id"`
	Preview bool   `json:"preview"`
}

// TabSession is the ordered tab list and active pointer of one pane. It
// holds no document state; documents are shared through the DraftTable.
// All methods are pure state transitions; the coordinator performs the
// flush guards around them.
//
// Invariants: no duplicate ids; at most one preview tab; the active id, if
// set, is present in the list.
type TabSession struct {
	tabs   []TabEntry
	active string
}

// Tabs returns a copy of the tab list.
func (s *TabSession) Tabs() []TabEntry {
	out := make([]TabEntry, len(s.tabs))
	copy(out, s.tabs)
	return out
}

// ActiveID returns the active document id, or "" when no tab is open.
func (s *TabSession) ActiveID() string { return s.active }

// Contains reports whether id is open in this session.
func (s *TabSession) Contains(id string) bool { return s.indexOf(id) >= 0 }

func (s *TabSession) indexOf(id string) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// PreviewID returns the id of the current preview tab, or "".
func (s *TabSession) PreviewID() string {
	for _, t := range s.tabs {
		if t.Preview {
			return t.ID
		}
	}
	return ""
}

// Activate makes id the active tab. Returns false if id is not open.
func (s *TabSession) Activate(id string) bool {
	if s.indexOf(id) < 0 {
		return false
	}
	s.active = id
	return true
}

// OpenFromList opens id as a preview tab. If id is already open it is just
// activated. An existing replaceable preview tab is swapped out in place
// (same index) and its id returned as evicted; a preview tab that cannot be
// replaced (dirty or saving, so canReplacePreview is false) is promoted to
// pinned instead, and the new tab appended. Draft data is never dropped by
// tab bookkeeping.
func (s *TabSession) OpenFromList(id string, canReplacePreview bool) (evicted string) {
	return s.open(id, true, canReplacePreview)
}

// OpenPinned opens id as a pinned tab, or clears the preview flag when it
// is already open.
func (s *TabSession) OpenPinned(id string, canReplacePreview bool) (evicted string) {
	return s.open(id, false, canReplacePreview)
}

func (s *TabSession) open(id string, preview, canReplacePreview bool) (evicted string) {
	if i := s.indexOf(id); i >= 0 {
		if !preview {
			s.tabs[i].Preview = false
		}
		s.active = id
		return ""
	}
	if p := s.previewIndex(); p >= 0 {
		if canReplacePreview {
			evicted = s.tabs[p].ID
			s.tabs[p] = TabEntry{ID: id, Preview: preview}
			s.active = id
			return evicted
		}
		s.tabs[p].Preview = false
	}
	s.tabs = append(s.tabs, TabEntry{ID: id, Preview: preview})
	s.active = id
	return ""
}

func (s *TabSession) previewIndex() int {
	for i, t := range s.tabs {
		if t.Preview {
			return i
		}
	}
	return -1
}

// PromoteOnEdit clears the preview flag on id: editing implies intent to
// keep. Returns true if the flag changed.
func (s *TabSession) PromoteOnEdit(id string) bool {
	i := s.indexOf(id)
	if i < 0 || !s.tabs[i].Preview {
		return false
	}
	s.tabs[i].Preview = false
	return true
}

// Close removes id. Closing the last tab clears the active pointer; closing
// the active tab otherwise activates the tab now at max(0, i-1), a fixed
// tie-break so the fallback is testable.
func (s *TabSession) Close(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	wasActive := s.active == id
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	if len(s.tabs) == 0 {
		s.active = ""
		return true
	}
	if wasActive {
		ni := i - 1
		if ni < 0 {
			ni = 0
		}
		s.active = s.tabs[ni].ID
	}
	return true
}

// CloseOthers keeps only id (activating it) and returns the closed ids.
func (s *TabSession) CloseOthers(id string) (closed []string) {
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	for _, t := range s.tabs {
		if t.ID != id {
			closed = append(closed, t.ID)
		}
	}
	s.tabs = []TabEntry{s.tabs[i]}
	s.active = id
	return closed
}

// CloseToRightOf closes every tab to the right of id and returns their ids.
// If the active tab was closed, id becomes active.
func (s *TabSession) CloseToRightOf(id string) (closed []string) {
	i := s.indexOf(id)
	if i < 0 {
		return nil
	}
	for _, t := range s.tabs[i+1:] {
		closed = append(closed, t.ID)
	}
	s.tabs = s.tabs[:i+1]
	if s.indexOf(s.active) < 0 {
		s.active = id
	}
	return closed
}
