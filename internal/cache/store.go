// Package cache defines the byte-oriented key/value store used by the query
// cache decorator, with a Redis adapter for production and an in-memory
// adapter for tests and single-process deployments.
//
// The store is shared with other processes: nothing here assumes exclusive
// access to a key, and concurrent writers follow last-writer-wins.
package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key has no live entry.
var ErrCacheMiss = errors.New("cache miss")

// Store is a key/value byte store with store-side TTL. Any error other than
// ErrCacheMiss is an availability fault; callers degrade to bypassing the
// cache rather than failing the request.
type Store interface {
	// Get returns the payload stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. TTL enforcement is the store's own.
	Set(ctx context.Context, key string, value []byte) error
}
