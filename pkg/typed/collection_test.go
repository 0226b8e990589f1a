package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt/pkg/core"
	"github.com/aretw0/silt/pkg/typed"
)

func TestCollection_AddSetFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	coll := typed.NewCollectionAt[user](store, "users")

	added, err := coll.Add(ctx, user{Name: "Alice", Age: 30}, nil)
	require.NoError(t, err)
	assert.Len(t, added.ID(), 20)

	_, err = coll.Set(ctx, "bob", user{Name: "Bob", Age: 25}, nil)
	require.NoError(t, err)

	found := coll.Find("bob")
	require.NotNil(t, found)
	got, err := found.Data()
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)

	assert.Nil(t, coll.Find("missing"))
	assert.Equal(t, 2, coll.Len())
}

func TestCollection_Values(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Write(ctx, "users/alice", core.FieldMap{"name": "Alice", "age": 30}))
	require.NoError(t, store.Write(ctx, "users/bob", core.FieldMap{"name": "Bob", "age": 25}))

	coll := typed.NewCollectionAt[user](store, "users")
	coll.Raw().OrderBy("age", false)
	require.NoError(t, coll.Get(ctx))

	values, err := coll.Values()
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, []string{"Bob", "Alice"}, []string{values[0].Name, values[1].Name})
}

func TestCollection_SaveDirtyMembers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Write(ctx, "users/alice", core.FieldMap{"name": "Alice", "age": 30}))

	coll := typed.NewCollectionAt[user](store, "users")
	require.NoError(t, coll.Get(ctx))

	for _, m := range coll.All() {
		m.Document().SetField("active", true)
	}
	require.NoError(t, coll.Save(ctx, nil))

	snap, err := store.Read(ctx, "users/alice")
	require.NoError(t, err)
	assert.Equal(t, true, snap.Fields["active"])
}

func TestCollection_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Write(ctx, "users/alice", core.FieldMap{"name": "Alice"}))

	coll := typed.NewCollectionAt[user](store, "users")
	require.NoError(t, coll.Get(ctx))
	require.NoError(t, coll.Delete(ctx, "alice", nil))

	assert.Nil(t, coll.Find("alice"))
	snap, err := store.Read(ctx, "users/alice")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}
