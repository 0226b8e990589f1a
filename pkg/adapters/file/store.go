// Package file implements core.Store on top of a directory of JSON
// documents. It is the server-side binding: state survives restarts,
// and out-of-band edits to the files surface as pushes via fsnotify.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/silt/internal/docjson"
	"github.com/aretw0/silt/internal/pubsub"
	"github.com/aretw0/silt/pkg/core"
)

const docExt = ".json"

// Config holds the configuration for the file-backed store.
type Config struct {
	// Root is the directory holding the document tree.
	Root string

	// MustExist refuses to create Root when it is missing.
	MustExist bool

	// Ignore lists doublestar patterns (relative to Root) whose files
	// the external-change watcher skips.
	Ignore []string

	Logger *slog.Logger

	// ErrorHandler receives watcher failures that have no caller to
	// return to. Nil falls back to the logger.
	ErrorHandler func(error)
}

// Store is a directory-backed core.Store. A document at path
// "users/u1" lives in Root/users/u1.json; its collection is the
// enclosing directory.
type Store struct {
	config Config
	hub    *pubsub.Hub

	mu    sync.Mutex
	cache map[string]core.FieldMap // last known state per doc path
	wins  *watchWorker
}

// NewStore opens (or creates) the document tree rooted at config.Root.
func NewStore(config Config) (*Store, error) {
	if config.MustExist {
		info, err := os.Stat(config.Root)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store root does not exist: %s", config.Root)
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("store root is not a directory: %s", config.Root)
		}
	} else if err := os.MkdirAll(config.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}

	return &Store{
		config: config,
		hub:    pubsub.NewHub(config.Logger),
		cache:  make(map[string]core.FieldMap),
	}, nil
}

// Read loads the document at path. A missing file is Exists=false.
func (s *Store) Read(ctx context.Context, path string) (core.DocSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.DocSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(path)
}

// Write replaces the whole document at path.
func (s *Store) Write(ctx context.Context, path string, fields core.FieldMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.setLocked(path, fields)
	snap, queries := s.pushStateLocked(path)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.Notify(snap, queries)
	return nil
}

// Patch applies a field subset to an existing document, honoring the
// delete sentinel. Patching a missing document fails with
// core.ErrNotFound.
func (s *Store) Patch(ctx context.Context, path string, fields core.FieldMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.patchLocked(path, fields)
	snap, queries := s.pushStateLocked(path)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hub.Notify(snap, queries)
	return nil
}

// Delete removes the document file. Deleting a missing document is a
// no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	existed, err := s.deleteLocked(path)
	snap, queries := s.pushStateLocked(path)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if existed {
		s.hub.Notify(snap, queries)
	}
	return nil
}

// Query evaluates the spec over the documents in the collection
// directory.
func (s *Store) Query(ctx context.Context, q core.QuerySpec) ([]core.DocSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps, err := s.collectionLocked(q.Path)
	if err != nil {
		return nil, err
	}
	return q.Apply(snaps), nil
}

// WatchDoc subscribes to one document path. Current state is pushed
// synchronously; the external-change watcher starts with the first
// subscriber.
func (s *Store) WatchDoc(path string, fn func(core.DocSnapshot)) (core.CancelFunc, error) {
	if err := s.startWatcher(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	initial, err := s.readLocked(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	cancel := s.hub.AddDocWatcher(path, fn)
	fn(initial)
	return cancel, nil
}

// WatchQuery subscribes to a query, pushing the initial result set
// synchronously with every document reported as added.
func (s *Store) WatchQuery(q core.QuerySpec, fn func(core.QuerySnapshot)) (core.CancelFunc, error) {
	if err := s.startWatcher(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	snaps, err := s.collectionLocked(q.Path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	w, cancel := s.hub.AddQueryWatcher(q, fn)
	fn(w.Seed(q.Apply(snaps)))
	return cancel, nil
}

// RunTransaction stages writes through fn and commits them under one
// lock acquisition if fn returns nil.
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

// Close stops the external-change watcher and drops all subscribers.
func (s *Store) Close() error {
	s.mu.Lock()
	w := s.wins
	s.wins = nil
	s.mu.Unlock()
	if w != nil {
		w.stop()
	}
	s.hub.Clear()
	return nil
}

func (s *Store) filePath(docPath string) string {
	return filepath.Join(s.config.Root, filepath.FromSlash(docPath)+docExt)
}

func (s *Store) readLocked(path string) (core.DocSnapshot, error) {
	snap := core.DocSnapshot{ID: core.LastSegment(path), Path: path}
	data, err := os.ReadFile(s.filePath(path))
	if os.IsNotExist(err) {
		delete(s.cache, path)
		return snap, nil
	}
	if err != nil {
		return snap, err
	}
	fields, err := docjson.Unmarshal(data)
	if err != nil {
		return snap, fmt.Errorf("failed to parse document %s: %w", path, err)
	}
	s.cache[path] = core.CopyFields(fields)
	snap.Exists = true
	snap.Fields = fields
	return snap, nil
}

func (s *Store) setLocked(path string, fields core.FieldMap) error {
	full := s.filePath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	data, err := docjson.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := writeFileAtomic(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	s.cache[path] = core.CopyFields(fields)
	return nil
}

func (s *Store) patchLocked(path string, fields core.FieldMap) error {
	snap, err := s.readLocked(path)
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
	return s.setLocked(path, doc)
}

func (s *Store) deleteLocked(path string) (bool, error) {
	err := os.Remove(s.filePath(path))
	if os.IsNotExist(err) {
		delete(s.cache, path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove document: %w", err)
	}
	delete(s.cache, path)
	return true, nil
}

func (s *Store) collectionLocked(collPath string) ([]core.DocSnapshot, error) {
	dir := filepath.Join(s.config.Root, filepath.FromSlash(collPath))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []core.DocSnapshot
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), docExt) || strings.HasPrefix(e.Name(), tempFilePrefix) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), docExt)
		snap, err := s.readLocked(core.JoinPath(collPath, id))
		if err != nil {
			// Skip unparseable files rather than failing the query.
			if s.config.Logger != nil {
				s.config.Logger.Warn("skipping unreadable document", "path", collPath+"/"+id, "error", err)
			}
			continue
		}
		if snap.Exists {
			out = append(out, snap)
		}
	}
	return out, nil
}

// pushStateLocked captures the post-mutation snapshot and the
// re-evaluated result sets for every query watcher on the parent, so
// Notify can run outside the lock.
func (s *Store) pushStateLocked(path string) (core.DocSnapshot, map[*pubsub.QueryWatcher][]core.DocSnapshot) {
	snap := core.DocSnapshot{ID: core.LastSegment(path), Path: path}
	if fields, ok := s.cache[path]; ok {
		snap.Exists = true
		snap.Fields = core.CopyFields(fields)
	}

	parent := core.ParentPath(path)
	watchers := s.hub.QueryWatchersFor(parent)
	if len(watchers) == 0 {
		return snap, nil
	}
	snaps, err := s.collectionLocked(parent)
	if err != nil {
		if s.config.Logger != nil {
			s.config.Logger.Warn("query re-evaluation failed", "path", parent, "error", err)
		}
		return snap, nil
	}
	queries := make(map[*pubsub.QueryWatcher][]core.DocSnapshot, len(watchers))
	for _, w := range watchers {
		queries[w] = w.Spec().Apply(snaps)
	}
	return snap, queries
}
