// Package silt is the composition root for the Silt document mapper.
//
// It connects the change-tracking domain layer (pkg/core) with the
// storage adapters (pkg/adapters) using the Hexagonal Architecture
// pattern.
//
// Philosophy:
//
// Silt treats a document store as a set of live objects. A Document
// tracks which of its fields changed since the last sync and sends only
// those on save; a Collection keeps a query-bound set of documents
// current against pushes from the store. The core is agnostic about the
// backend: memory, JSON files, and SQLite adapters ship in-tree, and
// anything implementing core.Store plugs in.
//
// Usage:
//
//	store, err := silt.Open("./data", silt.WithAdapter("file"))
//	if err != nil { ... }
//	defer store.Close()
//
//	doc := silt.NewDocumentAt(store, "users/alice")
//	doc.SetField("name", "Alice")
//	err = doc.Save(ctx, false, nil)
package silt
