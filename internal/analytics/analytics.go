package analytics

import (
	"context"
	"sync"

	"reachcheck/internal/event"
	"reachcheck/internal/models"
)

// rollingWindow bounds the response-time and failure-rate accounting to the
// most recent validations.
const rollingWindow = 100

// Stats is a point-in-time snapshot of the accumulator.
type Stats struct {
	Total         int64            `json:"total"`
	ByBanKind     map[string]int64 `json:"by_ban_kind"`
	CacheHits     int64            `json:"cache_hits"`
	Errors        int64            `json:"errors"`
	AvgResponseMs float64          `json:"avg_response_ms"`
	FailureRate   float64          `json:"failure_rate"`
	Samples       int              `json:"samples"`
}

// Accumulator keeps simple counters and a rolling average over validation
// outcomes. It consumes pipeline lifecycle events as an event.Listener; no
// persistence, in-memory only.
type Accumulator struct {
	mu        sync.Mutex
	total     int64
	byBanKind map[models.BanKind]int64
	cacheHits int64
	errors    int64

	// ring of recent outcomes: response time and whether the validation
	// counted as a failure (an error event, or a registered account where
	// every probe failed).
	durations []float64
	failures  []bool
	next      int
	filled    int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		byBanKind: make(map[models.BanKind]int64),
		durations: make([]float64, rollingWindow),
		failures:  make([]bool, rollingWindow),
	}
}

// Handle implements event.Listener.
func (a *Accumulator) Handle(_ context.Context, ev event.Event) {
	switch ev.Type {
	case event.TypeValidationCompleted:
		a.recordResult(ev.Result)
	case event.TypeCacheHit:
		a.mu.Lock()
		a.cacheHits++
		a.mu.Unlock()
	case event.TypeValidationError:
		a.mu.Lock()
		a.errors++
		a.push(0, true)
		a.mu.Unlock()
	}
}

func (a *Accumulator) recordResult(res *models.ValidationResult) {
	if res == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byBanKind[res.Ban.Kind]++

	failed := res.Registered &&
		res.Diagnostics.ProbesExecuted > 0 &&
		res.Diagnostics.ProbesSuccessful == 0
	a.push(float64(res.Diagnostics.ResponseTimeMs), failed)
}

// push records one outcome into the ring. Must be called with a.mu held.
func (a *Accumulator) push(durationMs float64, failed bool) {
	a.durations[a.next] = durationMs
	a.failures[a.next] = failed
	a.next = (a.next + 1) % rollingWindow
	if a.filled < rollingWindow {
		a.filled++
	}
}

// FailureRate returns the failure fraction over the rolling window and how
// many samples back it.
func (a *Accumulator) FailureRate() (float64, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failureRateLocked()
}

func (a *Accumulator) failureRateLocked() (float64, int) {
	if a.filled == 0 {
		return 0, 0
	}
	failed := 0
	for i := range a.filled {
		if a.failures[i] {
			failed++
		}
	}
	return float64(failed) / float64(a.filled), a.filled
}

// Snapshot returns current counters and rolling averages.
func (a *Accumulator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKind := make(map[string]int64, len(a.byBanKind))
	for kind, n := range a.byBanKind {
		byKind[string(kind)] = n
	}

	avg := 0.0
	if a.filled > 0 {
		sum := 0.0
		for i := range a.filled {
			sum += a.durations[i]
		}
		avg = sum / float64(a.filled)
	}

	rate, samples := a.failureRateLocked()
	return Stats{
		Total:         a.total,
		ByBanKind:     byKind,
		CacheHits:     a.cacheHits,
		Errors:        a.errors,
		AvgResponseMs: avg,
		FailureRate:   rate,
		Samples:       samples,
	}
}
