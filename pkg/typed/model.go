// Package typed provides type-safe views over core documents and
// collections. Conversion between T and the raw field map goes through
// a JSON round-trip so struct tags behave exactly as callers expect.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/silt/pkg/core"
)

// Model wraps a core.Document with a typed data surface. The underlying
// document keeps tracking field-level changes; Model only translates at
// the boundary.
type Model[T any] struct {
	doc *core.Document
}

// NewModel creates a typed view over a document bound to tmpl and key.
func NewModel[T any](store core.Store, tmpl core.Template, key core.Key, opts ...core.DocOption) (*Model[T], error) {
	doc, err := core.NewDocument(store, tmpl, key, opts...)
	if err != nil {
		return nil, err
	}
	return &Model[T]{doc: doc}, nil
}

// NewModelAt creates a typed view over the document at path.
func NewModelAt[T any](store core.Store, path string, opts ...core.DocOption) *Model[T] {
	return &Model[T]{doc: core.NewDocumentAt(store, path, opts...)}
}

// Wrap adopts an existing document, for instance a collection member.
func Wrap[T any](doc *core.Document) *Model[T] {
	return &Model[T]{doc: doc}
}

// Document exposes the underlying document for operations the typed
// surface doesn't cover.
func (m *Model[T]) Document() *core.Document { return m.doc }

// ID reports the underlying document's id.
func (m *Model[T]) ID() string { return m.doc.ID() }

// Exists reports whether the document existed at last observation.
func (m *Model[T]) Exists() bool { return m.doc.Exists() }

// Get fetches the document's current state.
func (m *Model[T]) Get(ctx context.Context) error { return m.doc.Get(ctx) }

// Load fetches the document only if it was never loaded.
func (m *Model[T]) Load(ctx context.Context) error { return m.doc.Load(ctx) }

// Data decodes the document's fields into T.
func (m *Model[T]) Data() (T, error) {
	return fromFields[T](m.doc.Data())
}

// SetData stages v locally, marking changed fields dirty.
func (m *Model[T]) SetData(v T) error {
	fields, err := toFields(v)
	if err != nil {
		return err
	}
	m.doc.SetData(fields)
	return nil
}

// Set writes v as the document's complete contents.
func (m *Model[T]) Set(ctx context.Context, v T, w core.Writer) error {
	fields, err := toFields(v)
	if err != nil {
		return err
	}
	return m.doc.Set(ctx, fields, w)
}

// Update sends only the dirty fields.
func (m *Model[T]) Update(ctx context.Context, w core.Writer) error {
	return m.doc.Update(ctx, w)
}

// Save picks set or update based on the document's state.
func (m *Model[T]) Save(ctx context.Context, force bool, w core.Writer) error {
	return m.doc.Save(ctx, force, w)
}

// Delete removes the document.
func (m *Model[T]) Delete(ctx context.Context, w core.Writer) error {
	return m.doc.Delete(ctx, w)
}

// Watch subscribes to pushes, decoding each one into T. Pushes that
// fail to decode are dropped.
func (m *Model[T]) Watch(fn func(T)) (core.CancelFunc, error) {
	return m.doc.Watch(func(core.DocSnapshot) {
		if v, err := fromFields[T](m.doc.Data()); err == nil {
			fn(v)
		}
	})
}

// Unwatch cancels the active watch, if any.
func (m *Model[T]) Unwatch() { m.doc.Unwatch() }

func toFields(v any) (core.FieldMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal typed data: %w", err)
	}
	var fields core.FieldMap
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("typed data must encode to an object: %w", err)
	}
	return fields, nil
}

func fromFields[T any](fields core.FieldMap) (T, error) {
	var v T
	raw, err := json.Marshal(fields)
	if err != nil {
		return v, fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode into %T: %w", v, err)
	}
	return v, nil
}
