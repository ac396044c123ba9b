package docstore

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
)

// resolveParent validates a parent id and maps the synthetic Uncategorized
// folder (and empty) to root. The returned id is safe to store.
func (s *Service) resolveParent(parentID string) (string, error) {
	if parentID == "" || parentID == models.UncategorizedNodeID {
		return "", nil
	}
	n, err := s.db.GetNode(parentID)
	if err != nil || n.Deleted || n.Kind != models.KindFolder {
		return "", apperr.New(apperr.CodeInvalidParentNodeID, "parent node %s is not a live folder", parentID)
	}
	return parentID, nil
}

func validateDisplayName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, 255),
	)
	if err != nil {
		return apperr.New(apperr.CodeInvalidDisplayName, "display name: %v", err)
	}
	return nil
}

// ListChildren returns the raw non-deleted direct children of parentID.
// Dangling-reference filtering, ordering, and the Uncategorized projection
// are read-side concerns handled by the tree package.
func (s *Service) ListChildren(_ context.Context, parentID string) ([]models.WorkspaceNode, error) {
	if parentID == models.UncategorizedNodeID {
		parentID = ""
	}
	rows, err := s.db.ListChildren(parentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	out := make([]models.WorkspaceNode, len(rows))
	for i, r := range rows {
		out[i] = nodeFromRow(r)
	}
	return out, nil
}

// CreateFolder adds a folder node under parentID (empty = root).
func (s *Service) CreateFolder(_ context.Context, parentID, name string) (*models.WorkspaceNode, error) {
	if err := validateDisplayName(name); err != nil {
		return nil, err
	}
	parent, err := s.resolveParent(parentID)
	if err != nil {
		return nil, err
	}
	row := index.NodeRow{
		NodeID:      uuid.NewString(),
		Kind:        models.KindFolder,
		ParentID:    parent,
		DisplayName: name,
	}
	if err := s.db.InsertNode(row); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	node := nodeFromRow(row)
	return &node, nil
}

// CreateNoteRef places an existing live document in the tree. An empty
// displayName falls back to the document title.
func (s *Service) CreateNoteRef(ctx context.Context, parentID, atomID, displayName string) (*models.WorkspaceNode, error) {
	parent, err := s.resolveParent(parentID)
	if err != nil {
		return nil, err
	}
	row, err := s.db.GetDocumentRow(atomID)
	if err != nil || row.Deleted {
		return nil, apperr.New(apperr.CodeInvalidDocumentID, "document %s is not live", atomID)
	}
	if displayName == "" {
		displayName = row.Title
	}
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	node := index.NodeRow{
		NodeID:      uuid.NewString(),
		Kind:        models.KindNoteRef,
		ParentID:    parent,
		AtomID:      atomID,
		DisplayName: displayName,
	}
	if err := s.db.InsertNode(node); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err)
	}
	out := nodeFromRow(node)
	return &out, nil
}

// RenameNode updates a node's display name.
func (s *Service) RenameNode(_ context.Context, nodeID, name string) error {
	if err := validateDisplayName(name); err != nil {
		return err
	}
	if err := s.db.RenameNode(nodeID, name); err != nil {
		if index.IsNotFound(err) {
			return apperr.New(apperr.CodeInvalidNodeID, "node %s not found", nodeID)
		}
		return apperr.Wrap(apperr.CodeInternal, err)
	}
	return nil
}

// MoveNode reparents a node. targetOrder is accepted at the wire level for
// compatibility but same-parent reordering is unsupported, so it never
// reaches this method.
func (s *Service) MoveNode(_ context.Context, nodeID, newParentID string) error {
	node, err := s.db.GetNode(nodeID)
	if err != nil || node.Deleted {
		return apperr.New(apperr.CodeInvalidNodeID, "node %s not found", nodeID)
	}
	parent, err := s.resolveParent(newParentID)
	if err != nil {
		return err
	}
	if parent != "" {
		// A folder must not move into its own subtree.
		sub, err := s.db.SubtreeNodes(nodeID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, err)
		}
		for _, n := range sub {
			if n.NodeID == parent {
				return apperr.New(apperr.CodeInvalidParentNodeID, "cannot move node %s into its own subtree", nodeID)
			}
		}
	}
	if err := s.db.MoveNode(nodeID, parent); err != nil {
		if index.IsNotFound(err) {
			return apperr.New(apperr.CodeInvalidNodeID, "node %s not found", nodeID)
		}
		return apperr.Wrap(apperr.CodeInternal, err)
	}
	return nil
}

// DeleteFolder removes a folder in one of two modes.
//
// Dissolve soft-deletes the folder node and reparents its direct children to
// root. DeleteAll soft-deletes the whole subtree's nodes and additionally
// soft-deletes every document that has no live reference left anywhere else
// in the tree.
func (s *Service) DeleteFolder(_ context.Context, folderID string, mode models.DeleteMode) error {
	node, err := s.db.GetNode(folderID)
	if err != nil || node.Deleted || node.Kind != models.KindFolder {
		return apperr.New(apperr.CodeInvalidNodeID, "folder %s not found", folderID)
	}

	switch mode {
	case models.DeleteDissolve:
		if err := s.db.ReparentChildren(folderID, ""); err != nil {
			return apperr.Wrap(apperr.CodeInternal, err)
		}
		if err := s.db.SetNodeDeleted(folderID, true); err != nil {
			return apperr.Wrap(apperr.CodeInternal, err)
		}
		return nil

	case models.DeleteAll:
		sub, err := s.db.SubtreeNodes(folderID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, err)
		}
		removed := make(map[string]struct{}, len(sub))
		for _, n := range sub {
			removed[n.NodeID] = struct{}{}
		}
		// Documents referenced only from inside the subtree go with it;
		// a reference elsewhere keeps the document alive.
		for _, n := range sub {
			if n.Kind != models.KindNoteRef {
				continue
			}
			left, err := s.db.LiveRefCount(n.AtomID, removed)
			if err != nil {
				return apperr.Wrap(apperr.CodeInternal, err)
			}
			if left == 0 {
				if err := s.db.SetDocumentDeleted(n.AtomID, true); err != nil && !index.IsNotFound(err) {
					return apperr.Wrap(apperr.CodeInternal, err)
				}
			}
		}
		for _, n := range sub {
			if err := s.db.SetNodeDeleted(n.NodeID, true); err != nil {
				return apperr.Wrap(apperr.CodeInternal, err)
			}
		}
		return nil

	default:
		return apperr.New(apperr.CodeInvalidNodeID, "unknown delete mode %q", mode)
	}
}

func nodeFromRow(r index.NodeRow) models.WorkspaceNode {
	return models.WorkspaceNode{
		NodeID:      r.NodeID,
		Kind:        r.Kind,
		ParentID:    r.ParentID,
		AtomID:      r.AtomID,
		DisplayName: r.DisplayName,
		SortOrder:   r.SortOrder,
		Deleted:     r.Deleted,
	}
}
