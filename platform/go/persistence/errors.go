package persistence

import "errors"

// ErrNotFound is returned when a catalog row does not exist (or has expired,
// for verification records).
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// Callers map it to their domain conflict error.
var ErrDuplicate = errors.New("duplicate record")
