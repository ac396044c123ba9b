// Package tree implements the read-side projection of the workspace tree:
// dangling-reference suppression, deterministic ordering, and the synthetic
// Uncategorized folder. Everything here is computed at read time from
// current liveness; nothing is persisted.
package tree

import (
	"sort"
	"strings"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
)

// Projection answers tree reads over the index.
type Projection struct {
	db index.Store
}

// NewProjection creates a projection over the given index.
func NewProjection(db index.Store) *Projection {
	return &Projection{db: db}
}

// ListChildren returns the visible children of parentID (empty = root).
//
// Only valid nodes are returned: folders, and note-refs whose target
// document exists and is not deleted. Ordering is folders before note-refs,
// case-insensitive display name ascending within each group, node id as the
// tie-break. At root, the synthetic Uncategorized folder is always listed
// first.
func (p *Projection) ListChildren(parentID string) ([]models.WorkspaceNode, error) {
	if parentID == models.UncategorizedNodeID {
		return p.uncategorized()
	}

	rows, err := p.db.ListChildren(parentID)
	if err != nil {
		return nil, err
	}

	live, err := p.db.LiveDocumentIDs()
	if err != nil {
		return nil, err
	}

	out := make([]models.WorkspaceNode, 0, len(rows))
	for _, r := range rows {
		if r.Kind == models.KindNoteRef {
			if _, ok := live[r.AtomID]; !ok {
				// Dangling reference; suppressed, never deleted; the edge
				// becomes visible again if the document is restored.
				continue
			}
		}
		out = append(out, models.WorkspaceNode{
			NodeID:      r.NodeID,
			Kind:        r.Kind,
			ParentID:    r.ParentID,
			AtomID:      r.AtomID,
			DisplayName: r.DisplayName,
			SortOrder:   r.SortOrder,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind == models.KindFolder
		}
		an, bn := strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)
		if an != bn {
			return an < bn
		}
		return a.NodeID < b.NodeID
	})

	if parentID == "" {
		out = append([]models.WorkspaceNode{uncategorizedFolder()}, out...)
	}
	return out, nil
}

// uncategorized lists every live document with no live note-ref anywhere in
// the tree, most recently updated first, id as tie-break. The entries are
// synthesized note-refs, not stored rows.
func (p *Projection) uncategorized() ([]models.WorkspaceNode, error) {
	referenced, err := p.db.ReferencedAtomIDs()
	if err != nil {
		return nil, err
	}
	docs, err := p.db.ListDocuments("")
	if err != nil {
		return nil, err
	}

	var out []models.WorkspaceNode
	for _, d := range docs {
		if _, ok := referenced[d.ID]; ok {
			continue
		}
		out = append(out, models.WorkspaceNode{
			NodeID:      models.UncategorizedNodeID + ":" + d.ID,
			Kind:        models.KindNoteRef,
			ParentID:    models.UncategorizedNodeID,
			AtomID:      d.ID,
			DisplayName: d.Title,
		})
	}
	return out, nil
}

func uncategorizedFolder() models.WorkspaceNode {
	return models.WorkspaceNode{
		NodeID:      models.UncategorizedNodeID,
		Kind:        models.KindFolder,
		DisplayName: "Uncategorized",
	}
}
