package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reachcheck/internal/models"
	"reachcheck/pkg/sentinel"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = time.Hour
)

// entry is owned exclusively by the store; it is destroyed on eviction, TTL
// expiry-on-read, or Clear.
type entry struct {
	value       *models.ValidationResult
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
}

// InMemoryStore is a time-boxed, capacity-bounded result cache. Eviction is
// strict least-recently-accessed (not least-recently-inserted); TTL is
// enforced lazily at Get time, never by a background sweep.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	capacity int
	ttl      time.Duration

	hits   int64
	misses int64
}

// NewInMemory constructs the store. Non-positive capacity or TTL is a caller
// contract violation and is rejected here.
func NewInMemory(capacity int, ttl time.Duration) (*InMemoryStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", ttl)
	}
	return &InMemoryStore{
		entries:  make(map[string]*entry),
		capacity: capacity,
		ttl:      ttl,
	}, nil
}

// Get returns the cached value if present and not expired. A hit updates the
// entry's last-access bookkeeping; an expired entry is deleted and counted as
// a miss.
func (s *InMemoryStore) Get(_ context.Context, key string) (*models.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, fmt.Errorf("cache key %q: %w", key, sentinel.ErrNotFound)
	}

	now := time.Now()
	if now.Sub(e.createdAt) > s.ttl {
		delete(s.entries, key)
		s.misses++
		return nil, fmt.Errorf("cache key %q expired: %w", key, sentinel.ErrNotFound)
	}

	e.lastAccess = now
	e.accessCount++
	s.hits++
	return e.value.Clone(), nil
}

// Set inserts a snapshot of the value. When the store is at capacity and the
// key is new, exactly one entry is evicted first: the one with the smallest
// last-access time, ties broken first-found.
func (s *InMemoryStore) Set(_ context.Context, key string, value *models.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.capacity {
		s.evictOldest()
	}

	now := time.Now()
	s.entries[key] = &entry{
		value:      value.Clone(),
		createdAt:  now,
		lastAccess: now,
	}
	return nil
}

// evictOldest removes the least-recently-accessed entry. Must be called with
// s.mu held.
func (s *InMemoryStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, e := range s.entries {
		if first || e.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccess
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestKey)
	}
}

// Clear drops all entries and resets the hit/miss counters.
func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	s.hits = 0
	s.misses = 0
	return nil
}

// Stats reports size, cumulative hits/misses, hit rate, and capacity.
func (s *InMemoryStore) Stats(_ context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Size:     len(s.entries),
		Hits:     s.hits,
		Misses:   s.misses,
		HitRate:  hitRate(s.hits, s.misses),
		Capacity: s.capacity,
	}
}
