package silt

import (
	"github.com/aretw0/silt/pkg/core"
	"github.com/aretw0/silt/pkg/typed"
)

// Model is a public alias for the typed document view.
type Model[T any] = typed.Model[T]

// TypedCollection is a public alias for the typed collection view.
type TypedCollection[T any] = typed.Collection[T]

// NewModel creates a typed document bound to tmpl and key.
func NewModel[T any](store core.Store, tmpl core.Template, key core.Key, opts ...core.DocOption) (*typed.Model[T], error) {
	return typed.NewModel[T](store, tmpl, key, opts...)
}

// NewModelAt creates a typed document at a literal path.
func NewModelAt[T any](store core.Store, path string, opts ...core.DocOption) *typed.Model[T] {
	return typed.NewModelAt[T](store, path, opts...)
}

// NewTypedCollection creates a typed collection bound to tmpl and key.
func NewTypedCollection[T any](store core.Store, tmpl core.Template, key core.Key, opts ...core.CollOption) (*typed.Collection[T], error) {
	return typed.NewCollection[T](store, tmpl, key, opts...)
}

// NewTypedCollectionAt creates a typed collection at a literal path.
func NewTypedCollectionAt[T any](store core.Store, path string, opts ...core.CollOption) *typed.Collection[T] {
	return typed.NewCollectionAt[T](store, path, opts...)
}
