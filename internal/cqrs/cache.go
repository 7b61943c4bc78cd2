package cqrs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/cache"
	"github.com/fwt/identity-core/internal/events"
)

// CachedQueryHandler wraps a query handler with cache-aside semantics. R is
// the concrete result type of the wrapped handler; cached payloads are its
// JSON encoding.
//
// Known limitation: writes are not mutually exclusive across concurrent
// callers. Two callers computing the same key at the same time may both
// invoke the wrapped handler and both write; the last writer wins. The cache
// is a read optimization, not a single-flight mechanism.
//
// Cache faults never fail the query: on a store read or write error the
// decorator logs at warn level and behaves as if the entry were absent.
type CachedQueryHandler[R any] struct {
	next  Handler
	store cache.Store
	log   zerolog.Logger
}

// NewCachedQueryHandler wraps next with read-through/write-through caching
// against store.
func NewCachedQueryHandler[R any](next Handler, store cache.Store, log zerolog.Logger) *CachedQueryHandler[R] {
	return &CachedQueryHandler[R]{next: next, store: store, log: log}
}

// Handle implements Handler. Requests that are not Queries pass straight
// through. A cache hit returns the stored result with no events; events are
// only ever produced by a real invocation of the wrapped handler.
func (c *CachedQueryHandler[R]) Handle(ctx context.Context, req Request) (any, []events.Event, error) {
	q, ok := req.(Query)
	if !ok {
		return c.next.Handle(ctx, req)
	}

	key := q.CacheKey()
	if q.Refresh() {
		cacheLookups.WithLabelValues(q.Name(), "bypass").Inc()
	} else {
		payload, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			var out R
			if uerr := json.Unmarshal(payload, &out); uerr == nil {
				cacheLookups.WithLabelValues(q.Name(), "hit").Inc()
				return out, nil, nil
			}
			// Undecodable entry: treat as a miss and overwrite below.
			c.log.Warn().Str("key", key).Msg("cache entry undecodable, recomputing")
			cacheLookups.WithLabelValues(q.Name(), "degraded").Inc()
		case errors.Is(err, cache.ErrCacheMiss):
			cacheLookups.WithLabelValues(q.Name(), "miss").Inc()
		default:
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, bypassing cache")
			cacheLookups.WithLabelValues(q.Name(), "degraded").Inc()
		}
	}

	res, evs, err := c.next.Handle(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	// Never cache a result for a caller that has already gone away: the
	// handler may have been cut short by the same cancellation.
	if ctx.Err() != nil {
		return res, evs, nil
	}

	payload, merr := json.Marshal(res)
	if merr != nil {
		c.log.Warn().Err(merr).Str("key", key).Msg("result not serializable, skipping cache write")
		return res, evs, nil
	}
	if serr := c.store.Set(ctx, key, payload); serr != nil {
		c.log.Warn().Err(serr).Str("key", key).Msg("cache write failed")
		cacheLookups.WithLabelValues(q.Name(), "degraded").Inc()
	}
	return res, evs, nil
}
