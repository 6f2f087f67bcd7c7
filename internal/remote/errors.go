package remote

import (
	"errors"
	"fmt"
)

// Sentinels for the remote failure taxonomy. Authorization failures are
// real problems and must never be treated as a transient offline
// condition; the engine surfaces them instead of swallowing.
var (
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrForbidden    = errors.New("remote: forbidden")
	ErrNotFound     = errors.New("remote: not found")
)

// ValidationError reports a request the remote service rejected as
// malformed. Fatal, surfaced to the caller for correction.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("remote: validation failed: %s", e.Message)
}

// UnreachableError wraps a remote call that could not complete: network
// failure, timeout, or an unexpected server error. Always non-fatal to
// the engine; the local pending state is the retry mechanism.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("remote %s: unreachable: %v", e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// IsUnreachable reports whether err is a connectivity-class failure that
// the offline-fallback path should swallow.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// IsAuthFailure reports whether err is an authorization failure
// (unauthorized or forbidden). These look nothing like being offline and
// are logged and surfaced accordingly.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
