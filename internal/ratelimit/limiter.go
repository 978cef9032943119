package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 10
	DefaultWindow      = time.Minute
)

// Limiter bounds outbound probe volume to a maximum number of requests per
// sliding time window. Timestamps older than the window are pruned lazily on
// each Acquire; the window prevents boundary bursts a fixed-interval counter
// would allow.
type Limiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	max        int
	window     time.Duration

	now func() time.Time
}

// New constructs a Limiter. Misconfiguration is rejected here so Acquire
// never has to fail at runtime.
func New(max int, window time.Duration) (*Limiter, error) {
	if max <= 0 {
		return nil, fmt.Errorf("rate limiter max must be positive, got %d", max)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limiter window must be positive, got %s", window)
	}
	return &Limiter{
		max:    max,
		window: window,
		now:    time.Now,
	}, nil
}

// Acquire blocks until a slot is available in the current window, commits a
// timestamp, and returns. The only failure mode is context cancellation.
// Waiting callers drain in wake order; ties at identical wake time are
// unordered.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire commits a timestamp if a slot is free, otherwise returns how
// long until the oldest tracked request exits the window.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.timestamps) < l.max {
		l.timestamps = append(l.timestamps, now)
		return 0, true
	}

	wait := l.window - now.Sub(l.timestamps[0])
	if wait <= 0 {
		// The oldest entry expired between prune and here; retry immediately.
		wait = time.Millisecond
	}
	return wait, false
}

// prune drops timestamps older than the trailing window. Must be called with
// l.mu held.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.timestamps); i++ {
		if l.timestamps[i].After(cutoff) {
			break
		}
	}
	l.timestamps = l.timestamps[i:]
}

// Reset clears all tracked timestamps. Used by tests and operators, not by
// the normal validation flow.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = l.timestamps[:0]
}

// Status reports the limiter's current occupancy.
type Status struct {
	Active    int        `json:"active"`
	Remaining int        `json:"remaining"`
	Max       int        `json:"max"`
	// OldestExit is when the oldest tracked request leaves the window;
	// nil when no requests are tracked.
	OldestExit *time.Time `json:"oldest_exit,omitempty"`
}

// Status returns the active count, remaining slots, and when the oldest
// tracked request exits the window.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())

	st := Status{
		Active:    len(l.timestamps),
		Remaining: l.max - len(l.timestamps),
		Max:       l.max,
	}
	if len(l.timestamps) > 0 {
		exit := l.timestamps[0].Add(l.window)
		st.OldestExit = &exit
	}
	return st
}
