package session

import "github.com/starford/othala/internal/parser"

// TagFilter holds the single selected tag narrowing the document list.
type TagFilter struct {
	selected string
}

// Selected returns the active tag, or "" when no filter is set.
func (f *TagFilter) Selected() string { return f.selected }

// Apply sets the filter to tag (normalized). A blank tag is a silent no-op.
// Returns true when the selection changed.
func (f *TagFilter) Apply(tag string) bool {
	tag = parser.NormalizeTag(tag)
	if tag == "" || tag == f.selected {
		return false
	}
	f.selected = tag
	return true
}

// Clear removes the filter. Returns true when a filter was set.
func (f *TagFilter) Clear() bool {
	if f.selected == "" {
		return false
	}
	f.selected = ""
	return true
}

// SyncCatalog reconciles the selection against the current tag catalog:
// when the selected tag no longer exists it is cleared automatically, so a
// filter never points at nothing. Returns true when that happened.
func (f *TagFilter) SyncCatalog(tags []string) bool {
	if f.selected == "" {
		return false
	}
	for _, t := range tags {
		if t == f.selected {
			return false
		}
	}
	f.selected = ""
	return true
}
