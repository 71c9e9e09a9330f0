package store

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied means the local store refused access. It aborts the
	// whole run.
	ErrAccessDenied = errors.New("local calendar store access denied")
	// ErrNoStorage means no writable location exists for the local store.
	ErrNoStorage = errors.New("no writable local calendar storage")
)

// IsRunFatal reports whether err must abort the run instead of only the
// calendar being processed.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrNoStorage)
}
