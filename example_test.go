package silt_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/silt"
)

// Example_basic demonstrates opening a store, saving a document, and
// reading it back.
func Example_basic() {
	store, err := silt.Open("", silt.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()

	// 1. Save a document. Only the fields assigned here go over the
	// wire on a later Update.
	doc := silt.NewDocumentAt(store, "notes/hello-world")
	doc.SetField("title", "Hello World")
	doc.SetField("tags", []any{"example"})
	if err := doc.Save(ctx, false, nil); err != nil {
		log.Fatal(err)
	}

	// 2. Read it back through a fresh handle.
	again := silt.NewDocumentAt(store, "notes/hello-world")
	if err := again.Get(ctx); err != nil {
		log.Fatal(err)
	}

	title, _ := again.Field("title")
	fmt.Printf("Found document: %s (%v)\n", again.ID(), title)
	// Output:
	// Found document: hello-world (Hello World)
}

// ExampleNewModelAt demonstrates the generic typed wrapper for
// type-safe document access.
func ExampleNewModelAt() {
	store, err := silt.Open("", silt.WithAdapter("memory"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	type User struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	ctx := context.Background()

	alice := silt.NewModelAt[User](store, "users/alice")
	if err := alice.Set(ctx, User{Name: "Alice", Email: "alice@example.com"}, nil); err != nil {
		log.Fatal(err)
	}

	again := silt.NewModelAt[User](store, "users/alice")
	if err := again.Get(ctx); err != nil {
		log.Fatal(err)
	}
	user, err := again.Data()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("User Name: %s\n", user.Name)
	// Output:
	// User Name: Alice
}
