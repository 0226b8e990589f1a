package platform

import (
	"fmt"
	"sync"

	"github.com/aretw0/silt/pkg/core"
)

// DefaultStore is the registry name used when callers don't pick one.
const DefaultStore = "default"

type registryEntry struct {
	uri   string
	opts  []Option
	store core.Store
	err   error
	once  sync.Once
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*registryEntry)
)

// RegisterStore records a named store configuration without opening it.
// The store is built lazily on the first OpenStore call. Registering a
// name twice is an error; use ResetStores between test runs.
func RegisterStore(name, uri string, opts ...Option) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("store %q already registered", name)
	}
	registry[name] = &registryEntry{uri: uri, opts: opts}
	return nil
}

// OpenStore returns the named store, building it on first use. The same
// instance is returned on every subsequent call.
func OpenStore(name string) (core.Store, error) {
	registryMu.Lock()
	e, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("store %q not registered", name)
	}
	e.once.Do(func() {
		e.store, e.err = New(e.uri, e.opts...)
	})
	return e.store, e.err
}

// ResetStores closes every opened store and clears the registry. Meant
// for tests; concurrent use with OpenStore is the caller's problem.
func ResetStores() {
	registryMu.Lock()
	entries := registry
	registry = make(map[string]*registryEntry)
	registryMu.Unlock()

	for _, e := range entries {
		if e.store != nil {
			e.store.Close()
		}
	}
}
