package cqrs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fwt/identity-core/internal/cache"
	"github.com/fwt/identity-core/internal/events"
)

// faultyStore fails every operation, simulating an unavailable cache.
type faultyStore struct {
	gets, sets int
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.gets++
	return nil, errors.New("cache down")
}

func (s *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets++
	return errors.New("cache down")
}

func TestCachedQueryHandler_MissInvokesAndWrites(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	inner := &fakeHandler{result: []string{"a", "b"}}
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())

	q := testQuery{ID: 5}
	res, _, err := h.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := res.([]string); len(got) != 2 || got[0] != "a" {
		t.Fatalf("result = %v; want [a b]", got)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d; want 1", inner.calls)
	}

	payload, err := store.Get(context.Background(), q.CacheKey())
	if err != nil {
		t.Fatalf("expected cache entry under %q: %v", q.CacheKey(), err)
	}
	var cached []string
	if err := json.Unmarshal(payload, &cached); err != nil || len(cached) != 2 {
		t.Fatalf("cached payload = %s (%v)", payload, err)
	}
}

func TestCachedQueryHandler_HitSkipsHandler(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	inner := &fakeHandler{result: []string{"fresh"}}
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())
	q := testQuery{ID: 5}

	if err := store.Set(context.Background(), q.CacheKey(), []byte(`["cached"]`)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	res, evs, err := h.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := res.([]string); len(got) != 1 || got[0] != "cached" {
		t.Fatalf("result = %v; want [cached]", got)
	}
	if inner.calls != 0 {
		t.Fatalf("inner calls = %d; want 0 on hit", inner.calls)
	}
	if evs != nil {
		t.Fatalf("events on cache hit = %v; want none", evs)
	}

	// Two sequential non-refresh dispatches: handler still never invoked.
	if _, _, err := h.Handle(context.Background(), q); err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if inner.calls != 0 {
		t.Fatalf("inner calls after second dispatch = %d; want 0", inner.calls)
	}
}

func TestCachedQueryHandler_RefreshBypassesReadButWrites(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	inner := &fakeHandler{result: []string{"fresh"}}
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())
	q := testQuery{ID: 5, DoRefresh: true}

	if err := store.Set(context.Background(), q.CacheKey(), []byte(`["stale"]`)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	res, _, err := h.Handle(context.Background(), q)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := res.([]string); got[0] != "fresh" {
		t.Fatalf("result = %v; want fresh value", got)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d; want exactly 1", inner.calls)
	}

	payload, err := store.Get(context.Background(), q.CacheKey())
	if err != nil {
		t.Fatalf("Get after refresh: %v", err)
	}
	if string(payload) != `["fresh"]` {
		t.Fatalf("cache entry = %s; want overwritten with fresh result", payload)
	}
}

func TestCachedQueryHandler_DegradesWhenStoreUnavailable(t *testing.T) {
	store := &faultyStore{}
	inner := &fakeHandler{result: []string{"x"}}
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())

	res, _, err := h.Handle(context.Background(), testQuery{ID: 5})
	if err != nil {
		t.Fatalf("cache fault must not fail the query: %v", err)
	}
	if got := res.([]string); got[0] != "x" {
		t.Fatalf("result = %v; want handler output", got)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d; want 1", inner.calls)
	}
	if store.gets != 1 || store.sets != 1 {
		t.Fatalf("store gets=%d sets=%d; want both attempted", store.gets, store.sets)
	}
}

func TestCachedQueryHandler_HandlerErrorNotCached(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	inner := &fakeHandler{err: errors.New("upstream broke")}
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())
	q := testQuery{ID: 5}

	if _, _, err := h.Handle(context.Background(), q); err == nil {
		t.Fatalf("expected handler error")
	}
	if _, err := store.Get(context.Background(), q.CacheKey()); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("cache entry after failure = %v; want miss", err)
	}
}

func TestCachedQueryHandler_NoWriteAfterCancellation(t *testing.T) {
	store := cache.NewMemoryStore(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	// The handler cancels the request context mid-flight and still returns a
	// result, mimicking a handler cut short by a caller timeout.
	inner := HandlerFunc(func(ctx context.Context, req Request) (any, []events.Event, error) {
		cancel()
		return []string{"partial"}, nil, nil
	})
	h := NewCachedQueryHandler[[]string](inner, store, zerolog.Nop())
	q := testQuery{ID: 9}

	if _, _, err := h.Handle(ctx, q); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := store.Get(context.Background(), q.CacheKey()); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("cache written after cancellation; want miss")
	}
}
