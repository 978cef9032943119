package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ValidationsTotal *prometheus.CounterVec
	ProbeDuration    *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	RateLimitWait    prometheus.Histogram
	BatchesTotal     prometheus.Counter
}

// New creates and registers all metrics against the given registerer. Tests
// pass a fresh prometheus.NewRegistry so suites never collide on the default
// registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reachcheck_validations_total",
			Help: "Total validations by ban verdict",
		}, []string{"verdict"}),
		ProbeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reachcheck_probe_duration_seconds",
			Help:    "Latency of individual remote probes",
			Buckets: prometheus.DefBuckets,
		}, []string{"probe"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachcheck_cache_hits_total",
			Help: "Validation results served from cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachcheck_cache_misses_total",
			Help: "Validation cache lookups that missed",
		}),
		RateLimitWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reachcheck_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate limit slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
		}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "reachcheck_batches_total",
			Help: "Batch validations started",
		}),
	}
}

// ObserveValidation records a finished validation under its verdict label.
func (m *Metrics) ObserveValidation(verdict string) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(verdict).Inc()
}

// ObserveProbe records the latency of one probe execution.
func (m *Metrics) ObserveProbe(probe string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.WithLabelValues(probe).Observe(d.Seconds())
}

// ObserveRateLimitWait records how long a caller was held by the limiter.
func (m *Metrics) ObserveRateLimitWait(d time.Duration) {
	if m == nil {
		return
	}
	m.RateLimitWait.Observe(d.Seconds())
}

// ObserveCache records a cache lookup outcome.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// ObserveBatch records one batch validation start.
func (m *Metrics) ObserveBatch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}
