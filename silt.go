package silt

import (
	"context"
	"log/slog"

	"github.com/aretw0/silt/internal/platform"
	"github.com/aretw0/silt/pkg/core"
)

// --- Types ---

// Document is a public alias for the change-tracking document.
type Document = core.Document

// Collection is a public alias for the query-bound document set.
type Collection = core.Collection

// Store is the capability surface every adapter implements.
type Store = core.Store

// FieldMap holds a document's fields.
type FieldMap = core.FieldMap

// Key binds placeholder names to values when building paths.
type Key = core.Key

// Template is a parsed path template.
type Template = core.Template

// QuerySpec describes a collection query.
type QuerySpec = core.QuerySpec

// Timestamp is the store representation of a point in time.
type Timestamp = core.Timestamp

// CancelFunc tears down a watch or subscription.
type CancelFunc = core.CancelFunc

// Delete marks a field for removal when assigned as its value.
var Delete = core.Delete

// --- Errors ---

var (
	ErrMissingReference = core.ErrMissingReference
	ErrAlreadyWatching  = core.ErrAlreadyWatching
	ErrSaveInFlight     = core.ErrSaveInFlight
	ErrNotFound         = core.ErrNotFound
)

// --- Configuration ---

// Option defines a functional option for configuring a store.
type Option = platform.Option

// WithLogger sets the logger for the store and everything built on it.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a pre-built store, bypassing adapter selection.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the storage adapter by name: "memory", "file" or
// "sqlite". Defaults to "memory".
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithMustExist makes the file adapter fail when the root directory is
// missing instead of creating it.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithIgnore sets glob patterns for files the file adapter's
// external-change watcher should not surface.
func WithIgnore(patterns ...string) Option {
	return platform.WithIgnore(patterns...)
}

// WithWatcherErrorHandler registers a callback for errors occurring in
// the file adapter's watch loop.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// Open builds a store from the given URI. The URI is adapter-specific:
// ignored for "memory", the root directory for "file", the database
// file for "sqlite".
func Open(uri string, opts ...Option) (core.Store, error) {
	return platform.New(uri, opts...)
}

// --- Registry ---

// DefaultStore is the registry name used when callers don't pick one.
const DefaultStore = platform.DefaultStore

// RegisterStore records a named store configuration; the store is built
// lazily on first OpenStore.
func RegisterStore(name, uri string, opts ...Option) error {
	return platform.RegisterStore(name, uri, opts...)
}

// OpenStore returns the named registered store, building it on first
// use.
func OpenStore(name string) (core.Store, error) {
	return platform.OpenStore(name)
}

// ResetStores closes every opened store and clears the registry. Meant
// for tests.
func ResetStores() {
	platform.ResetStores()
}

// --- Document and collection factories ---

// ParseTemplate parses a path template such as "users/{uid}".
func ParseTemplate(tmpl string) core.Template {
	return core.ParseTemplate(tmpl)
}

// NewDocument binds a document to the path built from tmpl and key.
func NewDocument(store core.Store, tmpl core.Template, key core.Key, opts ...core.DocOption) (*core.Document, error) {
	return core.NewDocument(store, tmpl, key, opts...)
}

// NewDocumentAt binds a document to a literal path.
func NewDocumentAt(store core.Store, path string, opts ...core.DocOption) *core.Document {
	return core.NewDocumentAt(store, path, opts...)
}

// NewCollection binds a collection to the path built from tmpl and key.
func NewCollection(store core.Store, tmpl core.Template, key core.Key, opts ...core.CollOption) (*core.Collection, error) {
	return core.NewCollection(store, tmpl, key, opts...)
}

// NewCollectionAt binds a collection to a literal path.
func NewCollectionAt(store core.Store, path string, opts ...core.CollOption) *core.Collection {
	return core.NewCollectionAt(store, path, opts...)
}

// --- Bulk helpers ---

// BatchSave persists documents in chunked batches, parallel per chunk.
func BatchSave(ctx context.Context, store core.Store, docs []*core.Document) error {
	return core.BatchSave(ctx, store, docs)
}

// BatchDelete removes documents in chunked batches, parallel per chunk.
func BatchDelete(ctx context.Context, store core.Store, docs []*core.Document) error {
	return core.BatchDelete(ctx, store, docs)
}
