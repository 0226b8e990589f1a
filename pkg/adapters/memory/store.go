// Package memory implements core.Store entirely in process. It is the
// client-side binding: no persistence, immediate pushes, suitable for
// tests and ephemeral caches.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/silt/internal/pubsub"
	"github.com/aretw0/silt/pkg/core"
)

// Config holds the configuration for the in-memory store.
type Config struct {
	Logger *slog.Logger
}

// Store is an in-process core.Store. Document state lives in a single
// map keyed by path; subscriptions are dispatched synchronously after
// each committed mutation, outside the state lock.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]core.FieldMap
	hub    *pubsub.Hub
	config Config
	closed bool
}

// NewStore creates an empty in-memory store.
func NewStore(config Config) *Store {
	return &Store{
		docs:   make(map[string]core.FieldMap),
		hub:    pubsub.NewHub(config.Logger),
		config: config,
	}
}

// Read returns the document at path. A miss is not an error: the
// snapshot comes back with Exists=false.
func (s *Store) Read(ctx context.Context, path string) (core.DocSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.DocSnapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(path), nil
}

// Write replaces the whole document at path.
func (s *Store) Write(ctx context.Context, path string, fields core.FieldMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[path] = core.CopyFields(fields)
	snap := s.snapshotLocked(path)
	queries := s.queryStateLocked(core.ParentPath(path))
	s.mu.Unlock()

	s.hub.Notify(snap, queries)
	return nil
}

// Patch applies a field subset to an existing document. Fields carrying
// the delete sentinel are removed. Patching a missing document fails
// with core.ErrNotFound.
func (s *Store) Patch(ctx context.Context, path string, fields core.FieldMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("patch %s: %w", path, core.ErrNotFound)
	}
	applyPatch(doc, fields)
	snap := s.snapshotLocked(path)
	queries := s.queryStateLocked(core.ParentPath(path))
	s.mu.Unlock()

	s.hub.Notify(snap, queries)
	return nil
}

// Delete removes the document at path. Deleting a missing document is
// a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, existed := s.docs[path]
	delete(s.docs, path)
	snap := s.snapshotLocked(path)
	queries := s.queryStateLocked(core.ParentPath(path))
	s.mu.Unlock()

	if existed {
		s.hub.Notify(snap, queries)
	}
	return nil
}

// Query evaluates the spec over the collection at q.Path.
func (s *Store) Query(ctx context.Context, q core.QuerySpec) ([]core.DocSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return q.Apply(s.collectionLocked(q.Path)), nil
}

// WatchDoc subscribes to one document path. The current state is pushed
// synchronously on registration.
func (s *Store) WatchDoc(path string, fn func(core.DocSnapshot)) (core.CancelFunc, error) {
	s.mu.RLock()
	initial := s.snapshotLocked(path)
	s.mu.RUnlock()

	cancel := s.hub.AddDocWatcher(path, fn)
	fn(initial)
	return cancel, nil
}

// WatchQuery subscribes to a query. The initial result set is pushed
// synchronously, with every document reported as added.
func (s *Store) WatchQuery(q core.QuerySpec, fn func(core.QuerySnapshot)) (core.CancelFunc, error) {
	s.mu.RLock()
	initial := q.Apply(s.collectionLocked(q.Path))
	s.mu.RUnlock()

	w, cancel := s.hub.AddQueryWatcher(q, fn)
	fn(w.Seed(initial))
	return cancel, nil
}

// RunTransaction runs fn against a staged transaction and commits it
// atomically if fn returns nil.
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

// Close drops all state and subscribers.
func (s *Store) Close() error {
	s.mu.Lock()
	s.docs = make(map[string]core.FieldMap)
	s.closed = true
	s.mu.Unlock()
	s.hub.Clear()
	return nil
}

func (s *Store) snapshotLocked(path string) core.DocSnapshot {
	fields, ok := s.docs[path]
	return core.DocSnapshot{
		ID:     core.LastSegment(path),
		Path:   path,
		Exists: ok,
		Fields: core.CopyFields(fields),
	}
}

func (s *Store) collectionLocked(collPath string) []core.DocSnapshot {
	var out []core.DocSnapshot
	for path := range s.docs {
		if core.ParentPath(path) == collPath {
			out = append(out, s.snapshotLocked(path))
		}
	}
	return out
}

// queryStateLocked evaluates every watched query rooted at collPath so
// the hub can diff and dispatch after the lock is released.
func (s *Store) queryStateLocked(collPath string) map[*pubsub.QueryWatcher][]core.DocSnapshot {
	out := make(map[*pubsub.QueryWatcher][]core.DocSnapshot)
	for _, w := range s.hub.QueryWatchersFor(collPath) {
		out[w] = w.Spec().Apply(s.collectionLocked(collPath))
	}
	return out
}

func applyPatch(doc core.FieldMap, fields core.FieldMap) {
	for k, v := range fields {
		if core.IsDelete(v) {
			delete(doc, k)
			continue
		}
		doc[k] = core.DeepCopy(v)
	}
}
