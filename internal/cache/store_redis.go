package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"reachcheck/internal/models"
	"reachcheck/pkg/sentinel"
)

// RedisStore is the distributed implementation of Store for deployments where
// multiple instances share validation results. TTL is enforced by Redis key
// expiry; capacity is delegated to the server's maxmemory policy, so Stats
// reports capacity 0.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis constructs a Redis-backed result cache.
func NewRedis(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", ttl)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.ValidationResult, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.misses.Add(1)
		return nil, fmt.Errorf("cache key %q: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}

	var result models.ValidationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is unusable; drop it and report a miss.
		_ = s.client.Del(ctx, key).Err()
		s.misses.Add(1)
		return nil, fmt.Errorf("cache key %q corrupt: %w", key, sentinel.ErrNotFound)
	}

	s.hits.Add(1)
	return &result, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value *models.ValidationResult) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Clear deletes all entries in the validation namespace and resets counters.
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del %q: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	s.hits.Store(0)
	s.misses.Store(0)
	return nil
}

func (s *RedisStore) Stats(ctx context.Context) Stats {
	size := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
	}

	hits := s.hits.Load()
	misses := s.misses.Load()
	return Stats{
		Size:    size,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
	}
}
