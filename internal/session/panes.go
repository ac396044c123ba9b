package session

import (
	"fmt"

	"github.com/starford/othala/internal/apperr"
)

// SplitDirection is the axis of a pane split.
type SplitDirection string

const (
	SplitHorizontal SplitDirection = "horizontal"
	SplitVertical   SplitDirection = "vertical"
)

// Valid reports whether d is a known direction.
func (d SplitDirection) Valid() bool {
	return d == SplitHorizontal || d == SplitVertical
}

// Pane is one editor pane with its own tab session.
type Pane struct {
	ID      string
	Session *TabSession
}

// PaneLayout is a flat list of sibling panes along a single axis. The axis
// is locked by the first split and released when the layout collapses back
// to one pane; nested splits are not supported.
type PaneLayout struct {
	panes     []*Pane
	active    int
	axis      SplitDirection
	maxPanes  int
	minExtent int
	nextID    int
}

// NewPaneLayout creates a layout with one empty pane.
func NewPaneLayout(maxPanes, minExtent int) *PaneLayout {
	l := &PaneLayout{maxPanes: maxPanes, minExtent: minExtent}
	l.panes = []*Pane{l.newPane()}
	return l
}

func (l *PaneLayout) newPane() *Pane {
	l.nextID++
	return &Pane{ID: fmt.Sprintf("pane-%d", l.nextID), Session: &TabSession{}}
}

// Panes returns the panes in layout order.
func (l *PaneLayout) Panes() []*Pane {
	out := make([]*Pane, len(l.panes))
	copy(out, l.panes)
	return out
}

// ActivePane returns the pane holding focus. The layout always has one.
func (l *PaneLayout) ActivePane() *Pane { return l.panes[l.active] }

// PaneCount returns the number of panes.
func (l *PaneLayout) PaneCount() int { return len(l.panes) }

// Axis returns the locked split direction, or "" for a single pane.
func (l *PaneLayout) Axis() SplitDirection {
	if len(l.panes) < 2 {
		return ""
	}
	return l.axis
}

// Find returns the pane with the given id.
func (l *PaneLayout) Find(paneID string) (*Pane, bool) {
	i := l.indexOf(paneID)
	if i < 0 {
		return nil, false
	}
	return l.panes[i], true
}

func (l *PaneLayout) indexOf(paneID string) int {
	for i, p := range l.panes {
		if p.ID == paneID {
			return i
		}
	}
	return -1
}

// Split creates a new pane after paneID and focuses it. containerExtent is
// the size of the container along the split axis; the split is refused when
// the resulting per-pane share would fall below the minimum extent. The new
// pane starts with one pinned tab for the source pane's active document (or
// empty when the source has none); the caller is responsible for retaining
// that document's shared state.
func (l *PaneLayout) Split(paneID string, dir SplitDirection, containerExtent int) (*Pane, error) {
	i := l.indexOf(paneID)
	if i < 0 {
		return nil, apperr.New(apperr.CodePaneNotFound, "pane %s not found", paneID)
	}
	if len(l.panes) >= l.maxPanes {
		return nil, apperr.New(apperr.CodeMaxPanesReached, "pane limit of %d reached", l.maxPanes)
	}
	if len(l.panes) > 1 && dir != l.axis {
		return nil, apperr.New(apperr.CodeDirectionLocked, "layout is split %s", l.axis)
	}
	if containerExtent/(len(l.panes)+1) < l.minExtent {
		return nil, apperr.New(apperr.CodeMinSizeBlocked, "split would shrink panes below %dpx", l.minExtent)
	}

	src := l.panes[i]
	np := l.newPane()
	if id := src.Session.ActiveID(); id != "" {
		np.Session.OpenPinned(id, false)
	}
	l.panes = append(l.panes[:i+1], append([]*Pane{np}, l.panes[i+1:]...)...)
	l.axis = dir
	l.active = i + 1
	return np, nil
}

// CloseActivePane removes the focused pane and returns it so the caller can
// release its tabs. Focus moves to the pane before it (or the first pane).
// The last remaining pane cannot be closed.
func (l *PaneLayout) CloseActivePane() (*Pane, error) {
	if len(l.panes) == 1 {
		return nil, apperr.New(apperr.CodeSinglePaneBlocked, "cannot close the last pane")
	}
	i := l.active
	closed := l.panes[i]
	l.panes = append(l.panes[:i], l.panes[i+1:]...)
	l.active = i - 1
	if l.active < 0 {
		l.active = 0
	}
	return closed, nil
}

// SwitchActivePane moves focus to paneID.
func (l *PaneLayout) SwitchActivePane(paneID string) error {
	i := l.indexOf(paneID)
	if i < 0 {
		return apperr.New(apperr.CodePaneNotFound, "pane %s not found", paneID)
	}
	l.active = i
	return nil
}

// CycleNextPane moves focus to the next pane in layout order, wrapping.
func (l *PaneLayout) CycleNextPane() *Pane {
	l.active = (l.active + 1) % len(l.panes)
	return l.panes[l.active]
}
