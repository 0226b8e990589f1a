package reactivity_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt"
	"github.com/aretw0/silt/pkg/core"
)

// setupWatchTest opens a file-backed store over a fresh directory and
// returns both, plus a context bounded for the whole test.
func setupWatchTest(t *testing.T) (string, silt.Store, context.Context) {
	t.Helper()
	root := t.TempDir()

	store, err := silt.Open(root, silt.WithAdapter("file"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return root, store, ctx
}

// TestWatch_ExternalModification verifies that editing a document file
// out of band reaches a live document watch.
func TestWatch_ExternalModification(t *testing.T) {
	root, store, ctx := setupWatchTest(t)

	require.NoError(t, store.Write(ctx, "notes/n1", silt.FieldMap{"body": "draft"}))

	doc := silt.NewDocumentAt(store, "notes/n1")
	pushes := make(chan core.DocSnapshot, 8)
	cancel, err := doc.Watch(func(snap core.DocSnapshot) { pushes <- snap })
	require.NoError(t, err)
	defer cancel()
	<-pushes // registration push

	// Give the watcher a moment to settle before editing externally.
	time.Sleep(100 * time.Millisecond)
	edited := []byte(`{"body": "edited elsewhere"}`)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "n1.json"), edited, 0644))

	select {
	case snap := <-pushes:
		assert.Equal(t, "edited elsewhere", snap.Fields["body"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for external modification push")
	}
}

// TestWatch_IgnoreSelf ensures the store's own writes, already notified
// synchronously, do not echo back through the file watcher.
func TestWatch_IgnoreSelf(t *testing.T) {
	_, store, ctx := setupWatchTest(t)

	require.NoError(t, store.Write(ctx, "notes/self", silt.FieldMap{"body": "v1"}))

	pushes := make(chan core.DocSnapshot, 8)
	cancel, err := store.WatchDoc("notes/self", func(snap core.DocSnapshot) { pushes <- snap })
	require.NoError(t, err)
	defer cancel()
	<-pushes // registration push

	require.NoError(t, store.Write(ctx, "notes/self", silt.FieldMap{"body": "v2"}))
	<-pushes // the synchronous notification for our own write

	// The fsnotify event for that same write must not produce a second
	// push: content already matches the cached state.
	select {
	case snap := <-pushes:
		t.Fatalf("own write echoed through the file watcher: %+v", snap)
	case <-time.After(500 * time.Millisecond):
	}
}

// TestWatch_ExternalAtomicWrite covers editors that write via temp file
// plus rename.
func TestWatch_ExternalAtomicWrite(t *testing.T) {
	root, store, ctx := setupWatchTest(t)

	require.NoError(t, store.Write(ctx, "notes/n2", silt.FieldMap{"body": "old"}))

	pushes := make(chan core.DocSnapshot, 8)
	cancel, err := store.WatchDoc("notes/n2", func(snap core.DocSnapshot) { pushes <- snap })
	require.NoError(t, err)
	defer cancel()
	<-pushes // registration push

	time.Sleep(100 * time.Millisecond)

	f, err := os.CreateTemp(filepath.Join(root, "notes"), "editor-swap-*")
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"body": "renamed into place"}`))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.Rename(f.Name(), filepath.Join(root, "notes", "n2.json")))

	select {
	case snap := <-pushes:
		assert.Equal(t, "renamed into place", snap.Fields["body"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for atomic-write push")
	}
}

// TestWatch_Debounce checks that a burst of rapid writes to one file
// collapses into a single reconcile push.
func TestWatch_Debounce(t *testing.T) {
	root, store, ctx := setupWatchTest(t)

	require.NoError(t, store.Write(ctx, "notes/rapid", silt.FieldMap{"rev": 0}))

	pushes := make(chan core.DocSnapshot, 16)
	cancel, err := store.WatchDoc("notes/rapid", func(snap core.DocSnapshot) { pushes <- snap })
	require.NoError(t, err)
	defer cancel()
	<-pushes // registration push

	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(root, "notes", "rapid.json")
	for i := 1; i <= 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte(fmt.Sprintf(`{"rev": %d}`, i)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	count := 0
	timeout := time.After(time.Second)
	for done := false; !done; {
		select {
		case <-pushes:
			count++
		case <-timeout:
			done = true
		case <-ctx.Done():
			done = true
		}
	}
	// Three writes inside the debounce window should coalesce. Timing
	// can split the burst, but six raw fsnotify events must not all
	// surface.
	require.GreaterOrEqual(t, count, 1)
	assert.LessOrEqual(t, count, 2, "debounce failed, got %d pushes", count)
}

// TestWatch_QuerySeesExternalCreate verifies that a collection watch
// picks up documents created directly on disk.
func TestWatch_QuerySeesExternalCreate(t *testing.T) {
	root, store, ctx := setupWatchTest(t)

	require.NoError(t, store.Write(ctx, "notes/first", silt.FieldMap{"body": "here"}))

	pushes := make(chan core.QuerySnapshot, 8)
	cancel, err := store.WatchQuery(silt.QuerySpec{Path: "notes"}, func(qs core.QuerySnapshot) { pushes <- qs })
	require.NoError(t, err)
	defer cancel()
	<-pushes // seed push

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "second.json"), []byte(`{"body": "new"}`), 0644))

	select {
	case qs := <-pushes:
		require.Len(t, qs.Changes, 1)
		assert.Equal(t, core.ChangeAdded, qs.Changes[0].Kind)
		assert.Equal(t, "second", qs.Changes[0].Doc.ID)
		assert.Len(t, qs.Docs, 2)
	case <-ctx.Done():
		t.Fatal("timed out waiting for query push")
	}
}
