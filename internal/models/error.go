package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrStoreUnavailable wraps transient backend failures so callers can
	// apply their fail-open/fail-closed policy with errors.Is.
	ErrStoreUnavailable = errors.New("store unavailable")
)
