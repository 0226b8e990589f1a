package platform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt/internal/platform"
)

func TestRegistry_LazyOpenReturnsSameInstance(t *testing.T) {
	t.Cleanup(platform.ResetStores)

	require.NoError(t, platform.RegisterStore(platform.DefaultStore, ""))

	a, err := platform.OpenStore(platform.DefaultStore)
	require.NoError(t, err)
	b, err := platform.OpenStore(platform.DefaultStore)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Cleanup(platform.ResetStores)

	require.NoError(t, platform.RegisterStore("cache", ""))
	err := platform.RegisterStore("cache", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_UnknownName(t *testing.T) {
	t.Cleanup(platform.ResetStores)

	_, err := platform.OpenStore("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_ResetAllowsReRegistration(t *testing.T) {
	t.Cleanup(platform.ResetStores)

	require.NoError(t, platform.RegisterStore("cache", ""))
	_, err := platform.OpenStore("cache")
	require.NoError(t, err)

	platform.ResetStores()
	assert.NoError(t, platform.RegisterStore("cache", ""))
}

func TestRegistry_OpenFailureIsSticky(t *testing.T) {
	t.Cleanup(platform.ResetStores)

	require.NoError(t, platform.RegisterStore("bad", "", platform.WithAdapter("cloud")))
	_, err := platform.OpenStore("bad")
	require.Error(t, err)

	// The failure is cached; a second open reports the same error.
	_, again := platform.OpenStore("bad")
	assert.Equal(t, err.Error(), again.Error())
}
