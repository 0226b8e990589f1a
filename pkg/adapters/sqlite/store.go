// Package sqlite implements core.Store on a single SQLite database.
// Every document is one row keyed by its full path, with the field map
// serialized as JSON. Pushes are dispatched in process: a write through
// this store notifies watchers registered on the same instance.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/silt/internal/docjson"
	"github.com/aretw0/silt/internal/pubsub"
	"github.com/aretw0/silt/pkg/core"
)

// Config holds the configuration for the sqlite store.
type Config struct {
	// Path is the database file. ":memory:" is accepted.
	Path string

	Logger *slog.Logger
}

// Store is a core.Store backed by a documents table:
//
//	documents(path, collection, data)  PRIMARY KEY (path)
//
// The collection column is the parent path, kept denormalized so query
// evaluation is a single indexed select.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	hub    *pubsub.Hub
	config Config
}

// NewStore opens (creating if needed) the database at config.Path and
// ensures the schema.
func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite: no database path configured")
	}
	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", config.Path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	if _, err := db.Exec(
		"CREATE INDEX IF NOT EXISTS documents_collection ON documents (collection)",
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ensure collection index: %w", err)
	}
	return &Store{
		db:     db,
		hub:    pubsub.NewHub(config.Logger),
		config: config,
	}, nil
}

// Read returns the document at path. A miss is not an error: the
// snapshot comes back with Exists=false.
func (s *Store) Read(ctx context.Context, path string) (core.DocSnapshot, error) {
	return readRow(ctx, s.db, path)
}

// Write replaces the whole document at path.
func (s *Store) Write(ctx context.Context, path string, fields core.FieldMap) error {
	s.mu.Lock()
	err := writeRow(ctx, s.db, path, fields)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap, queries := s.pushState(ctx, path)
	s.mu.Unlock()

	s.hub.Notify(snap, queries)
	return nil
}

// Patch applies a field subset to an existing document. Fields carrying
// the delete sentinel are removed. Patching a missing document fails
// with core.ErrNotFound.
func (s *Store) Patch(ctx context.Context, path string, fields core.FieldMap) error {
	s.mu.Lock()
	err := patchRow(ctx, s.db, path, fields)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap, queries := s.pushState(ctx, path)
	s.mu.Unlock()

	s.hub.Notify(snap, queries)
	return nil
}

// Delete removes the document at path. Deleting a missing document is
// a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	existed, err := deleteRow(ctx, s.db, path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap, queries := s.pushState(ctx, path)
	s.mu.Unlock()

	if existed {
		s.hub.Notify(snap, queries)
	}
	return nil
}

// Query evaluates the spec over the collection at q.Path.
func (s *Store) Query(ctx context.Context, q core.QuerySpec) ([]core.DocSnapshot, error) {
	snaps, err := s.collection(ctx, q.Path)
	if err != nil {
		return nil, err
	}
	return q.Apply(snaps), nil
}

// WatchDoc subscribes to one document path. The current state is pushed
// synchronously on registration.
func (s *Store) WatchDoc(path string, fn func(core.DocSnapshot)) (core.CancelFunc, error) {
	initial, err := readRow(context.Background(), s.db, path)
	if err != nil {
		return nil, err
	}
	cancel := s.hub.AddDocWatcher(path, fn)
	fn(initial)
	return cancel, nil
}

// WatchQuery subscribes to a query. The initial result set is pushed
// synchronously, with every document reported as added.
func (s *Store) WatchQuery(q core.QuerySpec, fn func(core.QuerySnapshot)) (core.CancelFunc, error) {
	snaps, err := s.collection(context.Background(), q.Path)
	if err != nil {
		return nil, err
	}
	w, cancel := s.hub.AddQueryWatcher(q, fn)
	fn(w.Seed(q.Apply(snaps)))
	return cancel, nil
}

// RunTransaction runs fn against a staged transaction and commits it
// inside one database transaction if fn returns nil.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx core.Tx) error) error {
	tx := &transaction{store: s, staged: make(map[string]write)}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// NewBatch opens an empty write batch.
func (s *Store) NewBatch() core.Batch {
	return &batch{store: s, staged: make(map[string]write)}
}

// Close drops all subscribers and closes the database.
func (s *Store) Close() error {
	s.hub.Clear()
	return s.db.Close()
}

// querier is the subset of sql.DB/sql.Tx the row helpers need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readRow(ctx context.Context, q querier, path string) (core.DocSnapshot, error) {
	snap := core.DocSnapshot{ID: core.LastSegment(path), Path: path}
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE path = ?", path,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return core.DocSnapshot{}, fmt.Errorf("sqlite: read %s: %w", path, err)
	}
	fields, err := docjson.Unmarshal([]byte(raw))
	if err != nil {
		return core.DocSnapshot{}, fmt.Errorf("sqlite: decode %s: %w", path, err)
	}
	snap.Exists = true
	snap.Fields = fields
	return snap, nil
}

func writeRow(ctx context.Context, q querier, path string, fields core.FieldMap) error {
	raw, err := docjson.Marshal(fields)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", path, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (path, collection, data) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data`,
		path, core.ParentPath(path), string(raw),
	)
	if err != nil {
		return fmt.Errorf("sqlite: write %s: %w", path, err)
	}
	return nil
}

func patchRow(ctx context.Context, q querier, path string, fields core.FieldMap) error {
	snap, err := readRow(ctx, q, path)
	if err != nil {
		return err
	}
	if !snap.Exists {
		return fmt.Errorf("patch %s: %w", path, core.ErrNotFound)
	}
	doc := snap.Fields
	for k, v := range fields {
		if core.IsDelete(v) {
			delete(doc, k)
			continue
		}
		doc[k] = core.DeepCopy(v)
	}
	return writeRow(ctx, q, path, doc)
}

func deleteRow(ctx context.Context, q querier, path string) (bool, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("sqlite: delete %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) collection(ctx context.Context, collPath string) ([]core.DocSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, data FROM documents WHERE collection = ?", collPath,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query %s: %w", collPath, err)
	}
	defer rows.Close()

	var out []core.DocSnapshot
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", collPath, err)
		}
		fields, err := docjson.Unmarshal([]byte(raw))
		if err != nil {
			if s.config.Logger != nil {
				s.config.Logger.Warn("skipping undecodable row", "path", path, "error", err)
			}
			continue
		}
		out = append(out, core.DocSnapshot{
			ID:     core.LastSegment(path),
			Path:   path,
			Exists: true,
			Fields: fields,
		})
	}
	return out, rows.Err()
}

// pushState re-reads the document and every watched query over its
// collection while s.mu is held, so the hub can dispatch a coherent
// diff after the caller unlocks.
func (s *Store) pushState(ctx context.Context, path string) (core.DocSnapshot, map[*pubsub.QueryWatcher][]core.DocSnapshot) {
	snap, err := readRow(ctx, s.db, path)
	if err != nil {
		snap = core.DocSnapshot{ID: core.LastSegment(path), Path: path}
	}
	collPath := core.ParentPath(path)
	queries := make(map[*pubsub.QueryWatcher][]core.DocSnapshot)
	for _, w := range s.hub.QueryWatchersFor(collPath) {
		snaps, err := s.collection(ctx, collPath)
		if err != nil {
			continue
		}
		queries[w] = w.Spec().Apply(snaps)
	}
	return snap, queries
}
