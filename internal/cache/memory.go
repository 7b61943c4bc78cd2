package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	writtenAt time.Time
}

// MemoryStore is an in-process Store used by tests and single-process
// deployments. Entries older than TTL are treated as absent; a zero TTL
// disables expiry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// TTL is the entry lifetime. Zero means entries never expire.
	TTL time.Duration

	// now is a test seam for expiry checks.
	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		TTL:     ttl,
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if s.TTL > 0 && s.now().Sub(e.writtenAt) > s.TTL {
		return nil, ErrCacheMiss
	}
	return e.payload, nil
}

// Set implements Store. Last writer wins.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{payload: value, writtenAt: s.now()}
	s.mu.Unlock()
	return nil
}
