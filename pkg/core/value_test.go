package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/silt/pkg/core"
)

func TestDeepEqual(t *testing.T) {
	now := time.Date(2021, 3, 4, 5, 6, 7, 890000000, time.UTC)

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"identical strings", "x", "x", true},
		{"int vs float same magnitude", 5, 5.0, true},
		{"int vs int64", int64(7), 7, true},
		{"different numbers", 5, 6, false},
		{"time vs timestamp same instant", now, core.NewTimestamp(now), true},
		{"times differing below a millisecond", now, now.Add(200 * time.Microsecond), true},
		{"times differing by a millisecond", now, now.Add(time.Millisecond), false},
		{"nested maps", map[string]any{"a": map[string]any{"b": 1}}, map[string]any{"a": map[string]any{"b": 1.0}}, true},
		{"slices ordered", []any{1, 2}, []any{2, 1}, false},
		{"nil vs value", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.DeepEqual(tt.a, tt.b))
		})
	}
}

func TestDeepCopyIsolation(t *testing.T) {
	src := map[string]any{"nested": map[string]any{"n": 1}, "list": []any{1, 2}}
	cp := core.DeepCopy(src).(map[string]any)

	cp["nested"].(map[string]any)["n"] = 99
	cp["list"].([]any)[0] = 99

	assert.Equal(t, 1, src["nested"].(map[string]any)["n"])
	assert.Equal(t, 1, src["list"].([]any)[0])
}

func TestDeleteSentinel(t *testing.T) {
	assert.True(t, core.IsDelete(core.Delete))
	assert.False(t, core.IsDelete(nil))
	assert.False(t, core.IsDelete(struct{}{}))
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2022, 1, 2, 3, 4, 5, 678000000, time.UTC)
	ts := core.NewTimestamp(now)
	assert.True(t, ts.Time().Equal(now))
	assert.Equal(t, now.UnixMilli(), ts.UnixMilli())
}
