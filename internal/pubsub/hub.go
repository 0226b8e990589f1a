// Package pubsub is the shared subscription hub behind the store
// adapters: it tracks document and query watchers, diffs query result
// sets between pushes, and dispatches callbacks outside any store lock.
package pubsub

import (
	"log/slog"
	"sync"

	"github.com/aretw0/silt/pkg/core"
)

// Hub tracks subscriptions for one store instance.
type Hub struct {
	mu            sync.Mutex
	nextID        int
	docWatchers   map[string]map[int]func(core.DocSnapshot)
	queryWatchers map[int]*QueryWatcher
	logger        *slog.Logger
}

// QueryWatcher is one registered query subscription with its diff
// state.
type QueryWatcher struct {
	id   int
	spec core.QuerySpec
	fn   func(core.QuerySnapshot)

	mu   sync.Mutex
	last map[string]core.FieldMap
}

// NewHub creates an empty hub. A nil logger disables logging.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		docWatchers:   make(map[string]map[int]func(core.DocSnapshot)),
		queryWatchers: make(map[int]*QueryWatcher),
		logger:        logger,
	}
}

// AddDocWatcher registers a per-path callback and returns its cancel.
func (h *Hub) AddDocWatcher(path string, fn func(core.DocSnapshot)) core.CancelFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.docWatchers[path] == nil {
		h.docWatchers[path] = make(map[int]func(core.DocSnapshot))
	}
	h.docWatchers[path][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if m := h.docWatchers[path]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(h.docWatchers, path)
			}
		}
	}
}

// AddQueryWatcher registers a query callback and returns the watcher
// plus its cancel.
func (h *Hub) AddQueryWatcher(spec core.QuerySpec, fn func(core.QuerySnapshot)) (*QueryWatcher, core.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	w := &QueryWatcher{id: id, spec: spec, fn: fn, last: make(map[string]core.FieldMap)}
	h.queryWatchers[id] = w

	return w, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.queryWatchers, id)
	}
}

// QueryWatchersFor lists watchers whose query is rooted at collPath.
func (h *Hub) QueryWatchersFor(collPath string) []*QueryWatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*QueryWatcher
	for _, w := range h.queryWatchers {
		if w.spec.Path == collPath {
			out = append(out, w)
		}
	}
	return out
}

// Notify pushes a document snapshot to its path watchers, then the
// re-evaluated result sets to their query watchers. Callers must not
// hold their store lock: callbacks may call back into the store.
func (h *Hub) Notify(snap core.DocSnapshot, queries map[*QueryWatcher][]core.DocSnapshot) {
	h.mu.Lock()
	var fns []func(core.DocSnapshot)
	for _, fn := range h.docWatchers[snap.Path] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}

	for w, snaps := range queries {
		if qs, changed := w.diff(snaps); changed {
			if h.logger != nil {
				h.logger.Debug("query push", "path", w.spec.Path, "changes", len(qs.Changes))
			}
			w.fn(qs)
		}
	}
}

// Clear drops every watcher.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docWatchers = make(map[string]map[int]func(core.DocSnapshot))
	h.queryWatchers = make(map[int]*QueryWatcher)
}

// Spec returns the watcher's bound query.
func (w *QueryWatcher) Spec() core.QuerySpec { return w.spec }

// Seed records the initial result set and reports every document as
// added, for the registration-time push.
func (w *QueryWatcher) Seed(snaps []core.DocSnapshot) core.QuerySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	qs := core.QuerySnapshot{Docs: snaps}
	for _, s := range snaps {
		w.last[s.ID] = s.Fields
		qs.Changes = append(qs.Changes, core.DocChange{Kind: core.ChangeAdded, Doc: s})
	}
	return qs
}

// diff computes the id-level change set against the previous push.
func (w *QueryWatcher) diff(snaps []core.DocSnapshot) (core.QuerySnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	qs := core.QuerySnapshot{Docs: snaps}
	next := make(map[string]core.FieldMap, len(snaps))

	for _, s := range snaps {
		next[s.ID] = s.Fields
		prev, seen := w.last[s.ID]
		switch {
		case !seen:
			qs.Changes = append(qs.Changes, core.DocChange{Kind: core.ChangeAdded, Doc: s})
		case !core.DeepEqual(map[string]any(prev), map[string]any(s.Fields)):
			qs.Changes = append(qs.Changes, core.DocChange{Kind: core.ChangeModified, Doc: s})
		}
	}
	for id := range w.last {
		if _, still := next[id]; !still {
			qs.Changes = append(qs.Changes, core.DocChange{
				Kind: core.ChangeRemoved,
				Doc:  core.DocSnapshot{ID: id, Path: core.JoinPath(w.spec.Path, id)},
			})
		}
	}

	w.last = next
	return qs, len(qs.Changes) > 0
}
