package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record, or a record it references, does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would violate a uniqueness constraint
	// (username, email, or a duplicate subscription edge).
	ErrConflict = errors.New("record conflict")
)
