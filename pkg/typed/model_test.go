package typed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt/pkg/adapters/memory"
	"github.com/aretw0/silt/pkg/core"
	"github.com/aretw0/silt/pkg/typed"
)

type user struct {
	Name  string   `json:"name"`
	Age   int      `json:"age"`
	Email string   `json:"email,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore(memory.Config{})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestModel_SetAndData(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m := typed.NewModelAt[user](store, "users/alice")
	require.NoError(t, m.Set(ctx, user{Name: "Alice", Age: 30, Tags: []string{"admin"}}, nil))

	// A fresh handle sees the same struct after a round trip.
	fresh := typed.NewModelAt[user](store, "users/alice")
	require.NoError(t, fresh.Get(ctx))
	require.True(t, fresh.Exists())

	got, err := fresh.Data()
	require.NoError(t, err)
	assert.Equal(t, user{Name: "Alice", Age: 30, Tags: []string{"admin"}}, got)
}

func TestModel_SetDataStagesDirtyFields(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m := typed.NewModelAt[user](store, "users/bob")
	require.NoError(t, m.Set(ctx, user{Name: "Bob", Age: 25}, nil))

	require.NoError(t, m.SetData(user{Name: "Bob", Age: 26}))
	assert.True(t, m.Document().Dirty())
	require.NoError(t, m.Update(ctx, nil))

	snap, err := store.Read(ctx, "users/bob")
	require.NoError(t, err)
	// The JSON round trip behind SetData stores numbers as float64.
	assert.EqualValues(t, 26, snap.Fields["age"])
}

func TestModel_OmitEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m := typed.NewModelAt[user](store, "users/carol")
	require.NoError(t, m.Set(ctx, user{Name: "Carol", Age: 35}, nil))

	snap, err := store.Read(ctx, "users/carol")
	require.NoError(t, err)
	assert.NotContains(t, snap.Fields, "email")
	assert.NotContains(t, snap.Fields, "tags")
}

func TestModel_NewModelBindsTemplateKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	tmpl := core.ParseTemplate("orgs/{org}/users/{user}")

	m, err := typed.NewModel[user](store, tmpl, core.Key{"org": "acme", "user": "dan"})
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, user{Name: "Dan"}, nil))

	snap, err := store.Read(ctx, "orgs/acme/users/dan")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}

func TestModel_Watch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Write(ctx, "users/eve", core.FieldMap{"name": "Eve", "age": 20}))

	m := typed.NewModelAt[user](store, "users/eve")
	var seen []user
	cancel, err := m.Watch(func(u user) { seen = append(seen, u) })
	require.NoError(t, err)
	defer cancel()

	require.Len(t, seen, 1)
	assert.Equal(t, "Eve", seen[0].Name)

	require.NoError(t, store.Patch(ctx, "users/eve", core.FieldMap{"age": 21}))
	require.Len(t, seen, 2)
	assert.Equal(t, 21, seen[1].Age)
}

func TestModel_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m := typed.NewModelAt[user](store, "users/gone")
	require.NoError(t, m.Set(ctx, user{Name: "Gone"}, nil))
	require.NoError(t, m.Delete(ctx, nil))

	snap, err := store.Read(ctx, "users/gone")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}
