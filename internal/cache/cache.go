package cache

import (
	"context"

	"reachcheck/internal/models"
)

// keyPrefix namespaces validation entries so they never collide with other
// key spaces sharing the same store (relevant for the Redis backend).
const keyPrefix = "validation:"

// Key builds the namespaced cache key for a normalized account identifier.
func Key(accountID string) string {
	return keyPrefix + accountID
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Size     int     `json:"size"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hit_rate"`
	Capacity int     `json:"capacity"`
}

// Store caches finished validation results keyed by normalized account
// identifier.
//
// Error Contract:
// - Get returns sentinel.ErrNotFound (wrapped) on a miss or an expired entry
// - Set and Clear return nil for in-memory stores; the Redis store surfaces
//   infrastructure failures wrapped with context
type Store interface {
	Get(ctx context.Context, key string) (*models.ValidationResult, error)
	Set(ctx context.Context, key string, value *models.ValidationResult) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) Stats
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
