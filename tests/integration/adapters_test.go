package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt"
	"github.com/aretw0/silt/pkg/core"
)

// openAll builds one store per adapter so the same scenario can run
// against each backend.
func openAll(t *testing.T) map[string]silt.Store {
	t.Helper()
	stores := make(map[string]silt.Store)

	mem, err := silt.Open("")
	require.NoError(t, err)
	stores["memory"] = mem

	fs, err := silt.Open(t.TempDir(), silt.WithAdapter("file"))
	require.NoError(t, err)
	stores["file"] = fs

	db, err := silt.Open(filepath.Join(t.TempDir(), "docs.db"), silt.WithAdapter("sqlite"))
	require.NoError(t, err)
	stores["sqlite"] = db

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestDocumentLifecycle(t *testing.T) {
	for name, store := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			doc := silt.NewDocumentAt(store, "users/alice")
			doc.SetField("name", "Alice")
			doc.SetField("age", 30)
			require.NoError(t, doc.Save(ctx, false, nil))

			fresh := silt.NewDocumentAt(store, "users/alice")
			require.NoError(t, fresh.Get(ctx))
			require.True(t, fresh.Exists())
			name, _ := fresh.Field("name")
			assert.Equal(t, "Alice", name)

			// A partial change goes out as a patch and leaves the rest
			// of the document alone.
			fresh.SetField("age", 31)
			require.NoError(t, fresh.Save(ctx, false, nil))

			again := silt.NewDocumentAt(store, "users/alice")
			require.NoError(t, again.Get(ctx))
			name, _ = again.Field("name")
			age, _ := again.Field("age")
			assert.Equal(t, "Alice", name)
			assert.EqualValues(t, 31, age)

			require.NoError(t, again.Delete(ctx, nil))
			check := silt.NewDocumentAt(store, "users/alice")
			require.NoError(t, check.Get(ctx))
			assert.False(t, check.Exists())
		})
	}
}

func TestCollectionQuery(t *testing.T) {
	for name, store := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			coll := silt.NewCollectionAt(store, "users")
			for _, u := range []struct {
				id  string
				age int
			}{{"alice", 30}, {"bob", 25}, {"carol", 35}} {
				_, err := coll.Set(ctx, u.id, silt.FieldMap{"age": u.age}, nil)
				require.NoError(t, err)
			}

			adults := silt.NewCollectionAt(store, "users").
				Where("age", core.OpGreaterEqual, 30).
				OrderBy("age", false)
			require.NoError(t, adults.Get(ctx))
			require.Equal(t, 2, adults.Len())
			assert.NotNil(t, adults.Find("alice"))
			assert.NotNil(t, adults.Find("carol"))
			assert.Nil(t, adults.Find("bob"))
		})
	}
}

func TestTransactionalCollectionSave(t *testing.T) {
	for name, store := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			coll := silt.NewCollectionAt(store, "tasks")
			for _, id := range []string{"t1", "t2", "t3"} {
				_, err := coll.Set(ctx, id, silt.FieldMap{"done": false}, nil)
				require.NoError(t, err)
			}

			for _, doc := range coll.All() {
				doc.SetField("done", true)
			}
			require.NoError(t, coll.Save(ctx, nil))

			fresh := silt.NewCollectionAt(store, "tasks")
			require.NoError(t, fresh.Get(ctx))
			for _, doc := range fresh.All() {
				done, _ := doc.Field("done")
				assert.Equal(t, true, done, "task %s", doc.ID())
			}
		})
	}
}

func TestWatchAcrossAdapters(t *testing.T) {
	for name, store := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.Write(ctx, "rooms/lobby", silt.FieldMap{"topic": "random"}))

			doc := silt.NewDocumentAt(store, "rooms/lobby")
			var pushes int
			cancel, err := doc.Watch(func(core.DocSnapshot) { pushes++ })
			require.NoError(t, err)
			defer cancel()

			require.Equal(t, 1, pushes, "registration push")

			require.NoError(t, store.Write(ctx, "rooms/lobby", silt.FieldMap{"topic": "general"}))
			assert.Equal(t, 2, pushes)
			topic, _ := doc.Field("topic")
			assert.Equal(t, "general", topic)
		})
	}
}
