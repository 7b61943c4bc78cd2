package cqrs

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned by handlers for requests that fail validation
// before any work is attempted. Not retried.
var ErrInvalidRequest = errors.New("invalid request")

// ErrDuplicateHandler is returned by Register when a handler is already
// registered for the request name. Programmer error, surfaced at composition
// time.
var ErrDuplicateHandler = errors.New("handler already registered")

// HandlerNotFoundError indicates no handler is registered for the request's
// type. This is a programmer error: the registry is built once at composition
// time, so it should be impossible at runtime.
type HandlerNotFoundError struct {
	Request string
}

// Error implements error.
func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for request %q", e.Request)
}

// HandlerExecutionError wraps a failure raised by a handler, preserving the
// underlying cause for errors.Is/As inspection.
type HandlerExecutionError struct {
	Request string
	Err     error
}

// Error implements error.
func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler for %q failed: %v", e.Request, e.Err)
}

// Unwrap exposes the underlying handler error.
func (e *HandlerExecutionError) Unwrap() error { return e.Err }
