package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// entry stores a cached value with its expiry. Once expiresAt is in the
// past the entry is logically absent even if it has not been removed yet.
type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// Store is an in-memory key/value cache with per-entry TTL and lazy
// expiration. It is the single cache shared by all providers; one instance
// is constructed at startup and passed to each provider.
//
// Cached values are treated as immutable: callers must never modify a value
// after Set or after receiving it from Get.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry

	hits   atomic.Uint64
	misses atomic.Uint64

	now func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock constructs a Store using the given clock. Tests use this to
// advance a virtual clock past entry TTLs without sleeping.
func NewWithClock(now func() time.Time) *Store {
	return &Store{items: make(map[string]entry), now: now}
}

// Get returns the value for key and whether it was found. A stored entry
// whose TTL has elapsed counts as a miss and is evicted as a side effect.
func (s *Store) Get(key string) (any, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		// Lazy eviction. Re-check under the write lock: another goroutine
		// may have replaced the entry since the read above.
		s.mu.Lock()
		if cur, still := s.items[key]; still && !now.Before(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.value, true
}

// Set stores value under key for ttl. Any existing entry is overwritten
// unconditionally (last writer wins).
func (s *Store) Set(key string, value any, ttl time.Duration) {
	now := s.now()
	s.mu.Lock()
	s.items[key] = entry{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	s.mu.Unlock()
}

// Delete removes key. Removing an absent key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear drops all entries. Counters are not reset.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

// CleanupExpired removes every expired entry and reports how many were
// dropped. Lazy expiration in Get keeps the cache correct without this;
// the periodic sweep only reclaims memory for keys nobody asks for again.
func (s *Store) CleanupExpired() int {
	now := s.now()
	removed := 0
	s.mu.Lock()
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}

// Stats returns current counters. HitRate is 0 before any Get call.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	size := len(s.items)
	s.mu.RUnlock()

	hits := s.hits.Load()
	misses := s.misses.Load()
	st := Stats{Size: size, Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}
