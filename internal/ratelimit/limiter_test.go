package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LimiterSuite struct {
	suite.Suite
	ctx context.Context
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *LimiterSuite) TestRejectsMisconfiguration() {
	_, err := New(0, time.Minute)
	s.Error(err)

	_, err = New(10, 0)
	s.Error(err)

	_, err = New(-1, -time.Second)
	s.Error(err)
}

func (s *LimiterSuite) TestAcquireUnderLimit() {
	l, err := New(3, time.Minute)
	s.Require().NoError(err)

	for range 3 {
		s.Require().NoError(l.Acquire(s.ctx))
	}

	st := l.Status()
	s.Equal(3, st.Active)
	s.Equal(0, st.Remaining)
	s.NotNil(st.OldestExit)
}

func (s *LimiterSuite) TestAcquireBlocksUntilWindowFrees() {
	window := 100 * time.Millisecond
	l, err := New(1, window)
	s.Require().NoError(err)

	s.Require().NoError(l.Acquire(s.ctx))

	start := time.Now()
	s.Require().NoError(l.Acquire(s.ctx))
	waited := time.Since(start)

	// The second acquire must have waited for the first timestamp to exit.
	s.GreaterOrEqual(waited, window/2)
}

func (s *LimiterSuite) TestAcquireHonorsContextCancellation() {
	l, err := New(1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(l.Acquire(s.ctx))

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()

	err = l.Acquire(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *LimiterSuite) TestReset() {
	l, err := New(2, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(l.Acquire(s.ctx))
	s.Require().NoError(l.Acquire(s.ctx))

	l.Reset()

	st := l.Status()
	s.Equal(0, st.Active)
	s.Equal(2, st.Remaining)
	s.Nil(st.OldestExit)
}

func (s *LimiterSuite) TestStatusPrunesExpired() {
	l, err := New(5, 30*time.Millisecond)
	s.Require().NoError(err)
	s.Require().NoError(l.Acquire(s.ctx))

	time.Sleep(50 * time.Millisecond)

	st := l.Status()
	s.Equal(0, st.Active)
	s.Equal(5, st.Remaining)
}

// TestWindowNeverExceeded drives concurrent acquirers through a short window
// and asserts the committed-timestamp invariant: at no instant do more than
// max timestamps live inside one window.
func TestWindowNeverExceeded(t *testing.T) {
	const max = 5
	window := 80 * time.Millisecond
	l, err := New(max, window)
	require.NoError(t, err)

	var mu sync.Mutex
	var commits []time.Time

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			commits = append(commits, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, commits, 20)
	for _, c := range commits {
		inWindow := 0
		for _, other := range commits {
			d := other.Sub(c)
			if d >= 0 && d < window {
				inWindow++
			}
		}
		// Small tolerance: commit timestamps are taken after the limiter's
		// own clock reading.
		assert.LessOrEqual(t, inWindow, max+1)
	}
}
