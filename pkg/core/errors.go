package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrMissingReference is returned when an operation needs a resolved
	// remote path but no key or reference was ever established.
	ErrMissingReference = errors.New("document has no resolved reference")

	// ErrAlreadyWatching is returned when Watch is called while a prior
	// watch on the same instance is still active. Cancel it first.
	ErrAlreadyWatching = errors.New("already watching")

	// ErrSaveInFlight is returned when Save is invoked while another save
	// on the same instance has not finished. The ledger is read and
	// cleared per save, so interleaving two would lose changes.
	ErrSaveInFlight = errors.New("save already in flight")

	// ErrNotFound is returned by stores when a partial update targets a
	// document that does not exist. Plain reads report a miss as
	// Exists=false with a nil error instead.
	ErrNotFound = errors.New("document not found")
)

// PathError reports a structured key that does not fit its path template:
// wrong segment count, or a literal segment mismatch.
type PathError struct {
	Template string
	Path     string
	Reason   string
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("path template %q: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("path %q does not match template %q: %s", e.Path, e.Template, e.Reason)
}
