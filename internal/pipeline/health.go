package pipeline

import (
	"context"
	"fmt"
	"sync"

	"reachcheck/internal/event"
)

// healthState tracks the last reported health level so transitions are
// announced once instead of on every validation.
type healthState struct {
	mu    sync.Mutex
	level int
}

// swap records the new level and reports whether it changed.
func (h *healthState) swap(level int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := level != h.level
	h.level = level
	return changed
}

// checkHealth consults the rolling failure rate and announces level
// transitions. Recovery back to healthy is silent.
func (s *Service) checkHealth(ctx context.Context) {
	if s.analytics == nil {
		return
	}
	rate, samples := s.analytics.FailureRate()
	if samples < healthMinSamples {
		return
	}

	level := healthOK
	switch {
	case rate >= healthCriticalThreshold:
		level = healthCritical
	case rate >= healthDegradedThreshold:
		level = healthDegraded
	}

	if !s.health.swap(level) {
		return
	}

	detail := fmt.Sprintf("failure_rate=%.2f samples=%d", rate, samples)
	switch level {
	case healthCritical:
		s.logger.ErrorContext(ctx, "validation failure rate critical", "rate", rate, "samples", samples)
		s.emit(ctx, event.Event{Type: event.TypeHealthCritical, Detail: detail})
	case healthDegraded:
		s.logger.WarnContext(ctx, "validation failure rate degraded", "rate", rate, "samples", samples)
		s.emit(ctx, event.Event{Type: event.TypeHealthDegraded, Detail: detail})
	}
}
