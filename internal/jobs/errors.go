// Package jobs implements the asynchronous job lifecycle: the command that
// creates fetch jobs, the event-driven state machine that advances them, and
// the queue consumer that feeds it. This file centralizes the package's
// error values.
package jobs

import "errors"

// ErrJobNotFound is returned when a consumed event references a job that does
// not exist. The message is malformed or points at a deleted job, so the
// error is permanent: the delivery is dead-lettered, never retried.
var ErrJobNotFound = errors.New("event references unknown job")
