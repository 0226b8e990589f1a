package file

import (
	"context"
	"fmt"

	"github.com/aretw0/silt/internal/pubsub"
	"github.com/aretw0/silt/pkg/core"
)

type writeKind int

const (
	writeSet writeKind = iota
	writePatch
	writeDelete
)

type write struct {
	kind   writeKind
	fields core.FieldMap
}

// transaction stages writes in memory and overlays them on reads.
// Commit applies everything under one lock acquisition; pushes go out
// after the lock is released.
type transaction struct {
	store  *Store
	staged map[string]write
	order  []string
	closed bool
}

func (t *transaction) Read(ctx context.Context, path string) (core.DocSnapshot, error) {
	if t.closed {
		return core.DocSnapshot{}, fmt.Errorf("transaction closed")
	}
	snap, err := t.store.Read(ctx, path)
	if err != nil {
		return core.DocSnapshot{}, err
	}
	w, ok := t.staged[path]
	if !ok {
		return snap, nil
	}
	switch w.kind {
	case writeDelete:
		return core.DocSnapshot{ID: snap.ID, Path: path}, nil
	case writeSet:
		return core.DocSnapshot{ID: snap.ID, Path: path, Exists: true, Fields: core.CopyFields(w.fields)}, nil
	default:
		fields := core.CopyFields(snap.Fields)
		if fields == nil {
			fields = make(core.FieldMap)
		}
		for k, v := range w.fields {
			if core.IsDelete(v) {
				delete(fields, k)
				continue
			}
			fields[k] = core.DeepCopy(v)
		}
		return core.DocSnapshot{ID: snap.ID, Path: path, Exists: true, Fields: fields}, nil
	}
}

func (t *transaction) Write(ctx context.Context, path string, fields core.FieldMap) error {
	return t.stage(path, write{kind: writeSet, fields: core.CopyFields(fields)})
}

func (t *transaction) Patch(ctx context.Context, path string, fields core.FieldMap) error {
	return t.stage(path, write{kind: writePatch, fields: core.CopyFields(fields)})
}

func (t *transaction) Delete(ctx context.Context, path string) error {
	return t.stage(path, write{kind: writeDelete})
}

func (t *transaction) stage(path string, w write) error {
	if t.closed {
		return fmt.Errorf("transaction closed")
	}
	prev, ok := t.staged[path]
	if !ok {
		t.order = append(t.order, path)
		t.staged[path] = w
		return nil
	}
	folded, err := foldWrite(path, prev, w)
	if err != nil {
		return err
	}
	t.staged[path] = folded
	return nil
}

// foldWrite collapses two staged writes on the same path into the one
// operation commit will run. A set or delete replaces whatever came
// before it. A patch folds into a prior set or patch field by field,
// honoring delete sentinels; a patch after a staged delete targets a
// document the commit will have removed, so it fails the way the store
// would.
func foldWrite(path string, prev, next write) (write, error) {
	if next.kind != writePatch {
		return next, nil
	}
	switch prev.kind {
	case writeSet:
		for k, v := range next.fields {
			if core.IsDelete(v) {
				delete(prev.fields, k)
				continue
			}
			prev.fields[k] = v
		}
		return prev, nil
	case writePatch:
		for k, v := range next.fields {
			prev.fields[k] = v
		}
		return prev, nil
	default:
		return write{}, fmt.Errorf("patch %s: %w", path, core.ErrNotFound)
	}
}

func (t *transaction) commit(ctx context.Context) error {
	if t.closed {
		return fmt.Errorf("transaction already closed")
	}
	t.closed = true
	return applyStaged(ctx, t.store, t.order, t.staged)
}

// batch shares the staging machinery but has no read surface and an
// explicit Commit.
type batch struct {
	store  *Store
	staged map[string]write
	order  []string
	closed bool
}

func (b *batch) Write(ctx context.Context, path string, fields core.FieldMap) error {
	return b.stage(path, write{kind: writeSet, fields: core.CopyFields(fields)})
}

func (b *batch) Patch(ctx context.Context, path string, fields core.FieldMap) error {
	return b.stage(path, write{kind: writePatch, fields: core.CopyFields(fields)})
}

func (b *batch) Delete(ctx context.Context, path string) error {
	return b.stage(path, write{kind: writeDelete})
}

func (b *batch) stage(path string, w write) error {
	if b.closed {
		return fmt.Errorf("batch already committed")
	}
	prev, ok := b.staged[path]
	if !ok {
		b.order = append(b.order, path)
		b.staged[path] = w
		return nil
	}
	folded, err := foldWrite(path, prev, w)
	if err != nil {
		return err
	}
	b.staged[path] = folded
	return nil
}

func (b *batch) Commit(ctx context.Context) error {
	if b.closed {
		return fmt.Errorf("batch already committed")
	}
	b.closed = true
	return applyStaged(ctx, b.store, b.order, b.staged)
}

func applyStaged(ctx context.Context, s *Store, order []string, staged map[string]write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	// Patch targets are validated before anything touches disk; a
	// missing one rejects the whole commit instead of stranding the
	// writes staged ahead of it.
	for _, path := range order {
		if staged[path].kind != writePatch {
			continue
		}
		snap, err := s.readLocked(path)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if !snap.Exists {
			s.mu.Unlock()
			return fmt.Errorf("patch %s: %w", path, core.ErrNotFound)
		}
	}
	for _, path := range order {
		w := staged[path]
		var err error
		switch w.kind {
		case writeSet:
			err = s.setLocked(path, w.fields)
		case writePatch:
			err = s.patchLocked(path, w.fields)
		case writeDelete:
			_, err = s.deleteLocked(path)
		}
		if err != nil {
			s.mu.Unlock()
			return err
		}
	}

	type push struct {
		snap    core.DocSnapshot
		queries map[*pubsub.QueryWatcher][]core.DocSnapshot
	}
	pushes := make([]push, 0, len(order))
	for i, path := range order {
		snap, queries := s.pushStateLocked(path)
		if i < len(order)-1 {
			// Query watchers see one coherent diff per commit, attached
			// to the final notification.
			queries = nil
		}
		pushes = append(pushes, push{snap: snap, queries: queries})
	}
	s.mu.Unlock()

	for _, p := range pushes {
		s.hub.Notify(p.snap, p.queries)
	}
	return nil
}
