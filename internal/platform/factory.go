// Package platform wires adapters into core stores. It is the single
// place that knows every backend by name; the public facade re-exports
// its options so callers never import adapter packages directly.
package platform

import (
	"fmt"

	"github.com/aretw0/silt/pkg/adapters/file"
	"github.com/aretw0/silt/pkg/adapters/memory"
	"github.com/aretw0/silt/pkg/adapters/sqlite"
	"github.com/aretw0/silt/pkg/core"
)

// New builds a store from the given URI and options. The URI argument
// is adapter-specific: ignored for "memory", the root directory for
// "file", the database file for "sqlite".
func New(uri string, opts ...Option) (core.Store, error) {
	o := parseOptions(opts)

	if o.store != nil {
		return o.store, nil
	}

	switch o.adapter {
	case "memory":
		return memory.NewStore(memory.Config{Logger: o.logger}), nil
	case "file":
		return newFile(uri, o)
	case "sqlite":
		return sqlite.NewStore(sqlite.Config{Path: uri, Logger: o.logger})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
}

func newFile(root string, o *options) (core.Store, error) {
	mustExist, _ := o.config["must_exist"].(bool)
	ignore, _ := o.config["ignore"].([]string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))

	return file.NewStore(file.Config{
		Root:         root,
		MustExist:    mustExist,
		Ignore:       ignore,
		Logger:       o.logger,
		ErrorHandler: errorHandler,
	})
}
