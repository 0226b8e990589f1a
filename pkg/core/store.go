package core

import "context"

// DocSnapshot is one document's state as observed at the store.
// Fields are in store representation (Timestamp, not time.Time).
type DocSnapshot struct {
	ID     string
	Path   string
	Exists bool
	Fields FieldMap
}

// ChangeKind classifies one entry of a query diff.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeRemoved  ChangeKind = "REMOVED"
)

// DocChange is a single id-level entry in a query push.
type DocChange struct {
	Kind ChangeKind
	Doc  DocSnapshot
}

// QuerySnapshot is one query push: the full result set plus the diff
// against the previous push.
type QuerySnapshot struct {
	Docs    []DocSnapshot
	Changes []DocChange
}

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// Reader is the read capability shared by Store and Tx. A missed read
// returns a snapshot with Exists=false and a nil error.
type Reader interface {
	Read(ctx context.Context, path string) (DocSnapshot, error)
}

// Writer is the write capability shared by Store, Tx, and Batch.
// Write replaces the whole document. Patch applies only the given
// fields, honoring the Delete sentinel as a field removal.
type Writer interface {
	Write(ctx context.Context, path string, fields FieldMap) error
	Patch(ctx context.Context, path string, fields FieldMap) error
	Delete(ctx context.Context, path string) error
}

// Tx is the ambient transaction handed to RunTransaction callbacks.
// Reads observe a consistent snapshot; writes stage until commit.
type Tx interface {
	Reader
	Writer
}

// Batch stages writes and commits them atomically.
type Batch interface {
	Writer
	Commit(ctx context.Context) error
}

// Store is the capability surface every backing client provides.
// Core logic is written once against it; the memory, file, and sqlite
// adapters supply concrete bindings.
type Store interface {
	Reader
	Writer

	// Query executes a spec and returns existing documents only.
	Query(ctx context.Context, q QuerySpec) ([]DocSnapshot, error)

	// WatchDoc subscribes to pushes for one document path. The callback
	// also fires for deletions (Exists=false).
	WatchDoc(path string, fn func(DocSnapshot)) (CancelFunc, error)

	// WatchQuery subscribes to pushes for a query. Every push carries
	// the full result set and the id-level diff.
	WatchQuery(q QuerySpec, fn func(QuerySnapshot)) (CancelFunc, error)

	// RunTransaction runs fn against a transaction and commits it if fn
	// returns nil; a non-nil error discards the staged writes.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// NewBatch opens an empty write batch.
	NewBatch() Batch

	// Close releases the underlying client resources.
	Close() error
}
