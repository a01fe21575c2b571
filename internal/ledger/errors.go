package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCredits is returned when a deduction exceeds the balance. Nothing is written.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrIdentityLoading     = errors.New("identity is still loading")
	ErrNoIdentity          = errors.New("no credit holder for identity")
	// ErrNoBalance means the holder has no stored balance yet.
	ErrNoBalance = errors.New("balance not initialized")
	// ErrStoreUnavailable marks transient store failures; the call may be retried.
	ErrStoreUnavailable = errors.New("credit store unavailable")
	ErrPermissionDenied = errors.New("credit store permission denied")
)

// PermissionError describes a store operation the holder is not allowed to perform.
// It is published on the Emitter as well as returned.
type PermissionError struct {
	Path      string
	Operation string
	Err       error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing or insufficient permissions: %s on %s", e.Operation, e.Path)
}

func (e *PermissionError) Unwrap() error {
	if e.Err == nil {
		return ErrPermissionDenied
	}
	return e.Err
}
