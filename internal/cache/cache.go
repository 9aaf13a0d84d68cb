//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cache provides a concurrency-safe, time-bounded response cache.
//
// Entries expire after a fixed TTL and are treated as absent on lookup once
// expired. When the capacity is exceeded the oldest-inserted entry is
// evicted first. Hit and miss counters are updated under the same lock as
// the data, so counters and contents never diverge.
package cache

import (
	"sync"
	"time"
)

// Store is a single cache instance. The server holds two independently
// configured instances: one for retrieval-only results and one for full
// chat answers.
type Store struct {
	mu       sync.Mutex
	enabled  bool
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	order    []orderedKey
	hits     uint64
	misses   uint64
	now      func() time.Time
}

type entry struct {
	value      any
	insertedAt time.Time
}

// orderedKey records insertion order for oldest-first eviction. A key that
// was overwritten or expired leaves a stale element behind; eviction skips
// it by comparing insertion times, and Put compacts the slice once stale
// elements outnumber live entries.
type orderedKey struct {
	key        string
	insertedAt time.Time
}

// Stats is a snapshot of the hit/miss counters.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// New creates a cache with the given TTL and capacity. When enabled is
// false both Get and Put are no-ops.
func New(ttl time.Duration, capacity int, enabled bool) *Store {
	return &Store{
		enabled:  enabled,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
}

// Get returns the cached value for key, or false if the key is absent,
// expired, or caching is disabled.
func (s *Store) Get(key string) (any, bool) {
	if !s.enabled {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok && s.now().Sub(e.insertedAt) < s.ttl {
		s.hits++
		return e.value, true
	}
	if ok {
		delete(s.entries, key)
	}
	s.misses++
	return nil, false
}

// Put stores value under key, evicting the oldest-inserted entries if the
// capacity is exceeded. No-op when caching is disabled.
func (s *Store) Put(key string, value any) {
	if !s.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	insertedAt := s.now()
	s.entries[key] = entry{value: value, insertedAt: insertedAt}
	s.order = append(s.order, orderedKey{key: key, insertedAt: insertedAt})

	if len(s.order) > 2*s.capacity {
		s.compactOrder()
	}

	for len(s.entries) > s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]

		e, ok := s.entries[oldest.key]
		if !ok || !e.insertedAt.Equal(oldest.insertedAt) {
			continue // overwritten since insertion
		}
		delete(s.entries, oldest.key)
	}
}

// compactOrder drops order elements whose entry was overwritten or removed,
// so repeated Puts of the same key cannot grow the slice without bound.
// The newest element per live key is kept; walking newest-first makes that
// unambiguous even when consecutive Puts share a clock reading. Caller must
// hold the lock.
func (s *Store) compactOrder() {
	seen := make(map[string]struct{}, len(s.entries))
	kept := make([]orderedKey, 0, len(s.entries))

	for i := len(s.order) - 1; i >= 0; i-- {
		ok := s.order[i]
		if _, dup := seen[ok.key]; dup {
			continue
		}
		e, live := s.entries[ok.key]
		if !live || !e.insertedAt.Equal(ok.insertedAt) {
			continue
		}
		seen[ok.key] = struct{}{}
		kept = append(kept, ok)
	}

	// Restore oldest-first order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	s.order = kept
}

// Enabled reports whether the cache is active.
func (s *Store) Enabled() bool {
	return s.enabled
}

// Stats returns the current hit/miss counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.hits, Misses: s.misses}
}

// Reset clears all entries and counters. Intended for tests.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	s.order = nil
	s.hits = 0
	s.misses = 0
}
