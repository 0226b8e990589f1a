package platform

import (
	"log/slog"

	"github.com/aretw0/silt/pkg/core"
)

// options holds the internal configuration assembled by the factory.
type options struct {
	store   core.Store
	logger  *slog.Logger
	adapter string
	config  map[string]any
}

// Option defines a functional option for configuring a store.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		adapter: "memory",
		config:  make(map[string]any),
	}
}

func parseOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for the store and everything built on it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a pre-built store, bypassing adapter selection.
// Useful for tests and custom backends.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage adapter by name: "memory", "file" or
// "sqlite". Defaults to "memory".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithMustExist makes the file adapter fail when the root directory is
// missing instead of creating it.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithIgnore sets glob patterns (doublestar syntax) for files the file
// adapter's external-change watcher should not surface.
func WithIgnore(patterns ...string) Option {
	return func(o *options) {
		o.config["ignore"] = patterns
	}
}

// WithWatcherErrorHandler registers a callback for errors occurring in
// the file adapter's watch loop, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}
