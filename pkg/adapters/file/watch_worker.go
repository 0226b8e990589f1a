package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/silt/pkg/core"
)

const debounceWindow = 50 * time.Millisecond

// watchWorker surfaces out-of-band file edits as store pushes. It is a
// scoped resource: started with the first subscriber, stopped on Close.
type watchWorker struct {
	store   *Store
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// startWatcher lazily starts the external-change watcher. Idempotent.
func (s *Store) startWatcher() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wins != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := recursiveAdd(watcher, s.config.Root); err != nil {
		_ = watcher.Close()
		return err
	}

	w := &watchWorker{store: s, watcher: watcher, timers: make(map[string]*time.Timer)}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	s.wins = w

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		s.fail(fmt.Errorf("file watcher: %w", err))
	}))
	return nil
}

func (s *Store) fail(err error) {
	if s.config.ErrorHandler != nil {
		s.config.ErrorHandler(err)
		return
	}
	if s.config.Logger != nil {
		s.config.Logger.Error("watcher error", "error", err)
	}
}

func (w *watchWorker) stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()
}

func (w *watchWorker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.store.fail(err)
		}
	}
}

func (w *watchWorker) handleEvent(ctx context.Context, event fsnotify.Event) {
	// New directories must be watched as they appear.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = recursiveAdd(w.watcher, event.Name)
			return
		}
	}

	docPath, ok := w.store.resolveDocPath(event.Name)
	if !ok {
		return
	}
	w.debounce(docPath, func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.store.reconcile(docPath)
	})
}

// debounce coalesces the burst of events a single file change produces.
func (w *watchWorker) debounce(docPath string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[docPath]; ok {
		t.Stop()
	}
	w.timers[docPath] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.timers, docPath)
		w.mu.Unlock()
		fn()
	})
}

// resolveDocPath maps an absolute filesystem path to a document path,
// filtering temp files, non-documents, and ignored patterns.
func (s *Store) resolveDocPath(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, tempFilePrefix) || !strings.HasSuffix(base, docExt) {
		return "", false
	}
	rel, err := filepath.Rel(s.config.Root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.config.Ignore {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return "", false
		}
	}
	return strings.TrimSuffix(rel, docExt), true
}

// reconcile re-reads one document and pushes only when its content
// actually differs from the last known state, so the store's own atomic
// writes (already notified synchronously) do not echo.
func (s *Store) reconcile(docPath string) {
	s.mu.Lock()
	prev, hadPrev := s.cache[docPath]
	snap, err := s.readLocked(docPath)
	if err != nil {
		s.mu.Unlock()
		s.fail(fmt.Errorf("reconcile %s: %w", docPath, err))
		return
	}
	unchanged := (hadPrev == snap.Exists) && (!hadPrev || core.DeepEqual(map[string]any(prev), map[string]any(snap.Fields)))
	if unchanged {
		s.mu.Unlock()
		return
	}
	pushSnap, queries := s.pushStateLocked(docPath)
	s.mu.Unlock()

	if s.config.Logger != nil {
		s.config.Logger.Debug("external change detected", "path", docPath, "exists", snap.Exists)
	}
	s.hub.Notify(pushSnap, queries)
}

func recursiveAdd(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
