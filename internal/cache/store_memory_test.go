package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reachcheck/internal/models"
	"reachcheck/pkg/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	store, err := NewInMemory(DefaultCapacity, DefaultTTL)
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func result(number string) *models.ValidationResult {
	r := models.NewValidationResult(number)
	r.AccountID = number + "@s.messenger.net"
	r.Registered = true
	return r
}

func (s *InMemoryStoreSuite) TestRejectsMisconfiguration() {
	_, err := NewInMemory(0, time.Hour)
	s.Error(err)

	_, err = NewInMemory(10, 0)
	s.Error(err)
}

func (s *InMemoryStoreSuite) TestGetMiss() {
	_, err := s.store.Get(s.ctx, Key("123"))
	s.ErrorIs(err, sentinel.ErrNotFound)

	st := s.store.Stats(s.ctx)
	s.Equal(int64(0), st.Hits)
	s.Equal(int64(1), st.Misses)
	s.Equal(float64(0), st.HitRate)
}

func (s *InMemoryStoreSuite) TestSetThenGet() {
	key := Key("123")
	s.Require().NoError(s.store.Set(s.ctx, key, result("123")))

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Equal("123", got.InputNumber)
	s.True(got.Registered)

	st := s.store.Stats(s.ctx)
	s.Equal(1, st.Size)
	s.Equal(int64(1), st.Hits)
	s.InDelta(1.0, st.HitRate, 1e-9)
}

func (s *InMemoryStoreSuite) TestCachedSnapshotIsIsolated() {
	key := Key("123")
	original := result("123")
	s.Require().NoError(s.store.Set(s.ctx, key, original))

	// Mutating the original after Set must not leak into the cache.
	original.Registered = false
	original.Recommendations = append(original.Recommendations, "mutated")

	got, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.True(got.Registered)
	s.Empty(got.Recommendations)

	// Mutating a returned value must not leak back either.
	got.Summary = "mutated"
	again, err := s.store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.Empty(again.Summary)
}

func (s *InMemoryStoreSuite) TestTTLExpiryOnRead() {
	key := Key("123")
	s.Require().NoError(s.store.Set(s.ctx, key, result("123")))

	// Age the entry past the TTL.
	s.store.mu.Lock()
	s.store.entries[key].createdAt = time.Now().Add(-DefaultTTL - time.Second)
	s.store.mu.Unlock()

	_, err := s.store.Get(s.ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Expired entry is removed from the store, not just skipped.
	st := s.store.Stats(s.ctx)
	s.Equal(0, st.Size)
	s.Equal(int64(1), st.Misses)
}

func (s *InMemoryStoreSuite) TestEvictsLeastRecentlyAccessed() {
	store, err := NewInMemory(3, time.Hour)
	s.Require().NoError(err)

	for i := range 3 {
		key := Key(fmt.Sprintf("%d", i))
		s.Require().NoError(store.Set(s.ctx, key, result(fmt.Sprintf("%d", i))))
	}

	// Touch 0 and 2 so 1 becomes the least recently accessed.
	_, err = store.Get(s.ctx, Key("0"))
	s.Require().NoError(err)
	_, err = store.Get(s.ctx, Key("2"))
	s.Require().NoError(err)

	s.Require().NoError(store.Set(s.ctx, Key("3"), result("3")))

	st := store.Stats(s.ctx)
	s.Equal(3, st.Size, "size never exceeds capacity after a Set")

	_, err = store.Get(s.ctx, Key("1"))
	s.ErrorIs(err, sentinel.ErrNotFound, "the least-recently-accessed entry is the evicted one")

	for _, k := range []string{"0", "2", "3"} {
		_, err = store.Get(s.ctx, Key(k))
		s.NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestCapacityPlusOneEvictsExactlyOne() {
	const capacity = 5
	store, err := NewInMemory(capacity, time.Hour)
	s.Require().NoError(err)

	for i := range capacity + 1 {
		key := Key(fmt.Sprintf("%d", i))
		s.Require().NoError(store.Set(s.ctx, key, result(fmt.Sprintf("%d", i))))
	}

	s.Equal(capacity, store.Stats(s.ctx).Size)

	// With no intervening Gets, last-access equals insertion time, so the
	// first inserted entry is the evicted one.
	_, err = store.Get(s.ctx, Key("0"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestOverwriteExistingKeyDoesNotEvict() {
	store, err := NewInMemory(2, time.Hour)
	s.Require().NoError(err)

	s.Require().NoError(store.Set(s.ctx, Key("a"), result("a")))
	s.Require().NoError(store.Set(s.ctx, Key("b"), result("b")))
	s.Require().NoError(store.Set(s.ctx, Key("a"), result("a")))

	for _, k := range []string{"a", "b"} {
		_, err = store.Get(s.ctx, Key(k))
		s.NoError(err)
	}
}

func (s *InMemoryStoreSuite) TestClearResetsCounters() {
	key := Key("123")
	s.Require().NoError(s.store.Set(s.ctx, key, result("123")))
	_, _ = s.store.Get(s.ctx, key)
	_, _ = s.store.Get(s.ctx, Key("missing"))

	s.Require().NoError(s.store.Clear(s.ctx))

	st := s.store.Stats(s.ctx)
	s.Equal(0, st.Size)
	s.Equal(int64(0), st.Hits)
	s.Equal(int64(0), st.Misses)
	s.Equal(float64(0), st.HitRate)
}

func (s *InMemoryStoreSuite) TestHitRate() {
	key := Key("123")
	s.Require().NoError(s.store.Set(s.ctx, key, result("123")))

	_, _ = s.store.Get(s.ctx, key)
	_, _ = s.store.Get(s.ctx, key)
	_, _ = s.store.Get(s.ctx, Key("missing"))
	_, _ = s.store.Get(s.ctx, Key("missing2"))

	st := s.store.Stats(s.ctx)
	s.InDelta(0.5, st.HitRate, 1e-9)
}
