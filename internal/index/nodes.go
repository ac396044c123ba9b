package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/othala/internal/models"
)

// NodeRow represents a row in the nodes table.
type NodeRow struct {
	NodeID      string
	Kind        models.NodeKind
	ParentID    string // empty = root
	AtomID      string // set for noteRef rows
	DisplayName string
	SortOrder   int
	Deleted     bool
}

func scanNode(scan func(...any) error) (NodeRow, error) {
	var (
		n       NodeRow
		kind    string
		deleted int
	)
	err := scan(&n.NodeID, &kind, &n.ParentID, &n.AtomID, &n.DisplayName, &n.SortOrder, &deleted)
	if err != nil {
		return n, err
	}
	n.Kind = models.NodeKind(kind)
	n.Deleted = deleted != 0
	return n, nil
}

const nodeColumns = `node_id, kind, parent_id, atom_id, display_name, sort_order, deleted`

// InsertNode adds a new tree node.
func (db *DB) InsertNode(n NodeRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO nodes (node_id, kind, parent_id, atom_id, display_name, sort_order)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.NodeID, string(n.Kind), n.ParentID, n.AtomID, n.DisplayName, n.SortOrder)
	if err != nil {
		return fmt.Errorf("index: insert node: %w", err)
	}
	return nil
}

// GetNode returns a node row (deleted or not), or sql.ErrNoRows.
func (db *DB) GetNode(nodeID string) (*NodeRow, error) {
	row := db.conn.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE node_id = ?`, nodeID)
	n, err := scanNode(row.Scan)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListChildren returns the non-deleted direct children of parentID
// (empty string = root). Ordering is left to the read-side projection.
func (db *DB) ListChildren(parentID string) ([]NodeRow, error) {
	rows, err := db.conn.Query(`
		SELECT `+nodeColumns+` FROM nodes WHERE parent_id = ? AND deleted = 0
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("index: list children: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RenameNode updates a node's display name.
func (db *DB) RenameNode(nodeID, displayName string) error {
	return db.nodeUpdate(`UPDATE nodes SET display_name = ? WHERE node_id = ? AND deleted = 0`, displayName, nodeID)
}

// MoveNode reparents a node. Same-parent reordering is unsupported; the
// sort_order is left untouched.
func (db *DB) MoveNode(nodeID, newParentID string) error {
	return db.nodeUpdate(`UPDATE nodes SET parent_id = ? WHERE node_id = ? AND deleted = 0`, newParentID, nodeID)
}

// SetNodeDeleted toggles a node's soft-delete flag.
func (db *DB) SetNodeDeleted(nodeID string, deleted bool) error {
	flag := 0
	if deleted {
		flag = 1
	}
	return db.nodeUpdate(`UPDATE nodes SET deleted = ? WHERE node_id = ?`, flag, nodeID)
}

func (db *DB) nodeUpdate(query string, args ...any) error {
	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("index: node update: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SubtreeNodes returns rootID's node plus every non-deleted descendant,
// using a recursive CTE.
func (db *DB) SubtreeNodes(rootID string) ([]NodeRow, error) {
	rows, err := db.conn.Query(`
		WITH RECURSIVE subtree(node_id) AS (
			SELECT node_id FROM nodes WHERE node_id = ? AND deleted = 0
			UNION ALL
			SELECT n.node_id FROM nodes n
			JOIN subtree s ON n.parent_id = s.node_id
			WHERE n.deleted = 0
		)
		SELECT `+nodeColumns+` FROM nodes WHERE node_id IN (SELECT node_id FROM subtree)
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("index: subtree: %w", err)
	}
	defer rows.Close()

	var out []NodeRow
	for rows.Next() {
		n, err := scanNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ReparentChildren moves all live direct children of oldParentID under
// newParentID (empty string = root).
func (db *DB) ReparentChildren(oldParentID, newParentID string) error {
	_, err := db.conn.Exec(`
		UPDATE nodes SET parent_id = ? WHERE parent_id = ? AND deleted = 0
	`, newParentID, oldParentID)
	if err != nil {
		return fmt.Errorf("index: reparent children: %w", err)
	}
	return nil
}

// LiveRefCount counts non-deleted noteRef rows pointing at atomID, skipping
// the given node ids. Used by deleteAll to decide whether a document still
// has a placement elsewhere in the tree.
func (db *DB) LiveRefCount(atomID string, excludeNodeIDs map[string]struct{}) (int, error) {
	rows, err := db.conn.Query(`
		SELECT node_id FROM nodes WHERE atom_id = ? AND kind = 'noteRef' AND deleted = 0
	`, atomID)
	if err != nil {
		return 0, fmt.Errorf("index: ref count: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		if _, skip := excludeNodeIDs[id]; skip {
			continue
		}
		count++
	}
	return count, rows.Err()
}

// ReferencedAtomIDs returns the atom ids referenced by any live noteRef.
// The Uncategorized projection lists live documents absent from this set.
func (db *DB) ReferencedAtomIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT atom_id FROM nodes WHERE kind = 'noteRef' AND deleted = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("index: referenced atoms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
