package telegram

import (
	"errors"
	"fmt"
)

// Upstream and session errors.
var (
	// ErrSliceNotSupported is returned when upstream delivers the dialog
	// list as a paginated slice. Partial processing would silently drop
	// entries during resolution, so the fetch fails fast instead. Not
	// retried automatically.
	ErrSliceNotSupported = errors.New("paginated dialog slice not supported")

	// ErrSessionNotFound is returned when no session is stored for a user.
	ErrSessionNotFound = errors.New("telegram session not found")

	// ErrSessionExpired is returned when the stored session has passed its
	// expiry and must be re-established before upstream calls can be made.
	ErrSessionExpired = errors.New("telegram session expired")
)

// TransientError wraps a network or timeout fault talking to upstream. The
// caller may retry the whole request.
type TransientError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient upstream error during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying fault.
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
