package localstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced local record does not exist.
// Delete is exempt: deleting an absent identifier is not an error.
var ErrNotFound = errors.New("event not found in local store")

// PersistenceError wraps a failure of the underlying storage. These are
// fatal to the operation and always propagate to the caller; the
// optimistic-write contract depends on local durability succeeding.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("local store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err is a local storage failure.
// Uses errors.As to handle wrapped errors.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
