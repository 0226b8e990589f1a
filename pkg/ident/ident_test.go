package ident_test

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt/pkg/ident"
)

func TestRandom(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := ident.Random()
		assert.Len(t, id, ident.RandomLength)
		for _, r := range id {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
				"unexpected rune %q in %q", r, id)
		}
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100, "ids should not collide across 100 draws")
}

func TestSortable_OrderMatchesTime(t *testing.T) {
	base := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	ids := []string{
		ident.SortableAt(base.Add(2 * time.Hour)),
		ident.SortableAt(base),
		ident.SortableAt(base.Add(time.Minute)),
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, sorted)
	assert.Len(t, ids[0], 20)
}

func TestSortableTime_RoundTrip(t *testing.T) {
	at := time.Date(2024, 7, 8, 9, 10, 11, 120000000, time.UTC)
	id := ident.SortableAt(at)

	got, err := ident.SortableTime(id)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), got.UnixMilli())
}

func TestSortableTime_Invalid(t *testing.T) {
	_, err := ident.SortableTime("short")
	assert.Error(t, err)

	_, err = ident.SortableTime("___invalid___________")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 7, 8, 9, 0, 0, 0, time.UTC)

	assert.NoError(t, ident.Validate(ident.SortableAt(now), now))
	// Inside the allowed skew window.
	assert.NoError(t, ident.Validate(ident.SortableAt(now.Add(3*time.Second)), now))
	// Beyond it.
	assert.Error(t, ident.Validate(ident.SortableAt(now.Add(time.Minute)), now))
}

func TestULID(t *testing.T) {
	a := ident.ULID()
	b := ident.ULID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestUUID(t *testing.T) {
	assert.Len(t, ident.UUID(), 36)
}
