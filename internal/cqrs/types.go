// Package cqrs implements the request-processing core: typed query/command
// contracts, a dispatcher routing each request to exactly one registered
// handler, and a cache-aside decorator for query handlers.
package cqrs

import (
	"context"

	"github.com/fwt/identity-core/internal/events"
)

// Request is a routable query or command. Name identifies the concrete
// request type and is the dispatcher's registry key.
type Request interface {
	Name() string
}

// Query is an immutable read request. Identity for caching is derived from
// field values via CacheKey, never from object identity.
type Query interface {
	Request

	// Refresh reports whether this invocation must bypass the cache read.
	Refresh() bool

	// CacheKey returns the deterministic fingerprint of the query: the
	// request name concatenated with the stable scalar identity of its
	// primary field. Same query value, same key, always.
	CacheKey() string
}

// Command is an immutable intent to change state. Commands have no cache
// semantics; the interface exists so composition code can tell the two
// request classes apart.
type Command interface {
	Request

	// IsCommand is a marker with no behavior.
	IsCommand()
}

// Handler executes one concrete request type. It returns the typed result
// and, in emission order, the events describing state changes it performed.
// Events are returned rather than accumulated on the handler so handlers
// stay free of externally observable internal state.
type Handler interface {
	Handle(ctx context.Context, req Request) (any, []events.Event, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (any, []events.Event, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (any, []events.Event, error) {
	return f(ctx, req)
}
