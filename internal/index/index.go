package index

// Store defines the interface for index operations. Consumers should depend
// on this interface rather than the concrete *DB type to facilitate testing
// with mocks.
type Store interface {
	UpsertDocument(row DocumentRow, body string) error
	SetDocumentDeleted(id string, deleted bool) error
	HardDeleteDocument(id string) error
	GetDocumentRow(id string) (*DocumentRow, error)
	ListDocuments(tag string) ([]DocumentRow, error)
	ListTags() ([]string, error)
	LiveDocumentIDs() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)

	InsertNode(n NodeRow) error
	GetNode(nodeID string) (*NodeRow, error)
	ListChildren(parentID string) ([]NodeRow, error)
	RenameNode(nodeID, displayName string) error
	MoveNode(nodeID, newParentID string) error
	SetNodeDeleted(nodeID string, deleted bool) error
	SubtreeNodes(rootID string) ([]NodeRow, error)
	ReparentChildren(oldParentID, newParentID string) error
	LiveRefCount(atomID string, excludeNodeIDs map[string]struct{}) (int, error)
	ReferencedAtomIDs() (map[string]struct{}, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
