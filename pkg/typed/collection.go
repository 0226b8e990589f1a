package typed

import (
	"context"

	"github.com/aretw0/silt/pkg/core"
)

// Collection wraps a core.Collection with a typed member surface.
type Collection[T any] struct {
	coll *core.Collection
}

// NewCollection creates a typed view over the collection bound to tmpl
// and key.
func NewCollection[T any](store core.Store, tmpl core.Template, key core.Key, opts ...core.CollOption) (*Collection[T], error) {
	coll, err := core.NewCollection(store, tmpl, key, opts...)
	if err != nil {
		return nil, err
	}
	return &Collection[T]{coll: coll}, nil
}

// NewCollectionAt creates a typed view over the collection at path.
func NewCollectionAt[T any](store core.Store, path string, opts ...core.CollOption) *Collection[T] {
	return &Collection[T]{coll: core.NewCollectionAt(store, path, opts...)}
}

// Raw exposes the underlying collection for query chaining and
// operations the typed surface doesn't cover.
func (c *Collection[T]) Raw() *core.Collection { return c.coll }

// Get fetches the current result set.
func (c *Collection[T]) Get(ctx context.Context) error { return c.coll.Get(ctx) }

// Load fetches the result set only if it was never loaded.
func (c *Collection[T]) Load(ctx context.Context) error { return c.coll.Load(ctx) }

// Add stores v under a generated id and returns the typed member.
func (c *Collection[T]) Add(ctx context.Context, v T, w core.Writer) (*Model[T], error) {
	fields, err := toFields(v)
	if err != nil {
		return nil, err
	}
	doc, err := c.coll.Add(ctx, fields, w)
	if err != nil {
		return nil, err
	}
	return Wrap[T](doc), nil
}

// Set stores v under the given id, replacing any previous contents.
func (c *Collection[T]) Set(ctx context.Context, id string, v T, w core.Writer) (*Model[T], error) {
	fields, err := toFields(v)
	if err != nil {
		return nil, err
	}
	doc, err := c.coll.Set(ctx, id, fields, w)
	if err != nil {
		return nil, err
	}
	return Wrap[T](doc), nil
}

// Delete removes the member with the given id.
func (c *Collection[T]) Delete(ctx context.Context, id string, w core.Writer) error {
	return c.coll.Delete(ctx, id, w)
}

// Save persists every dirty member, transactionally when w is nil.
func (c *Collection[T]) Save(ctx context.Context, w core.Writer) error {
	return c.coll.Save(ctx, w)
}

// Find returns the typed member with the given id, or nil.
func (c *Collection[T]) Find(id string) *Model[T] {
	doc := c.coll.Find(id)
	if doc == nil {
		return nil
	}
	return Wrap[T](doc)
}

// All returns the current members in result order.
func (c *Collection[T]) All() []*Model[T] {
	docs := c.coll.All()
	out := make([]*Model[T], 0, len(docs))
	for _, doc := range docs {
		out = append(out, Wrap[T](doc))
	}
	return out
}

// Values decodes every member into T, in result order.
func (c *Collection[T]) Values() ([]T, error) {
	docs := c.coll.All()
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := fromFields[T](doc.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Len reports the current member count.
func (c *Collection[T]) Len() int { return c.coll.Len() }
