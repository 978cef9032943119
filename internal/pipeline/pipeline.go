package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reachcheck/internal/analytics"
	"reachcheck/internal/cache"
	"reachcheck/internal/classifier"
	"reachcheck/internal/event"
	"reachcheck/internal/models"
	"reachcheck/internal/platform/config"
	"reachcheck/internal/platform/metrics"
	"reachcheck/internal/plugin"
	"reachcheck/internal/probe"
	"reachcheck/internal/ratelimit"
)

// Fixed summary strings keyed on (registered, ban kind). The HTTP surface and
// downstream consumers match on these verbatim.
const (
	summaryNotRegistered = "Not registered or permanently banned"
	summaryActive        = "Active and verified"
	summaryBannedFmt     = "Registered but banned (%s)"
	summaryCritical      = "Critical validation error"
	summaryCancelled     = "Validation cancelled"
	summaryInvalidInput  = "Invalid input number"
)

const (
	healthDegradedThreshold = 0.5
	healthCriticalThreshold = 0.8
	healthMinSamples        = 10

	healthOK       = 0
	healthDegraded = 1
	healthCritical = 2
)

// Request is one validation order. ForceRefresh bypasses the cache lookup;
// the fresh result still overwrites the cached entry.
type Request struct {
	Number       string
	ForceRefresh bool
}

// Service is the top-level sequencer: rate gate, cache, probing,
// classification, review derivation, finalization. Validate never returns an
// error; every per-account failure lands inside the result itself.
type Service struct {
	cfg  config.Config
	orch *probe.Orchestrator

	limiter    *ratelimit.Limiter
	cache      cache.Store
	classifier *classifier.Classifier
	bus        *event.Bus
	plugins    *plugin.Registry
	analytics  *analytics.Accumulator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer

	health healthState
}

// Option configures a Service. Every collaborator is optional; a Service
// built with none of them still validates, it just skips the corresponding
// stage.
type Option func(*Service)

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

func WithCache(store cache.Store) Option {
	return func(s *Service) { s.cache = store }
}

func WithClassifier(c *classifier.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithEventBus(b *event.Bus) Option {
	return func(s *Service) { s.bus = b }
}

func WithPlugins(r *plugin.Registry) Option {
	return func(s *Service) { s.plugins = r }
}

// WithAnalytics wires the accumulator. The pipeline feeds it synchronously so
// the post-validation health check always sees the sample it just produced;
// do not also register the same accumulator on the event bus.
func WithAnalytics(a *analytics.Accumulator) Option {
	return func(s *Service) { s.analytics = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New builds the pipeline around the given remote connection.
func New(client probe.Client, cfg config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("reachcheck/pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}

	orch, err := probe.NewOrchestrator(client, probe.Config{
		Timeout:        cfg.ProbeTimeout,
		PresenceMargin: cfg.PresenceMargin,
		Parallel:       cfg.ParallelProbes,
		Presence:       cfg.PresenceCheck,
		Retry:          cfg.RetryEnabled,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
	}, probe.WithLogger(s.logger), probe.WithMetrics(s.metrics))
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	s.orch = orch
	return s, nil
}

// Validate runs the full sequence for one number. A panic anywhere in the
// sequence is recovered into the result rather than crossing this boundary.
func (s *Service) Validate(ctx context.Context, req Request) (result *models.ValidationResult) {
	start := time.Now()
	result = models.NewValidationResult(req.Number)

	ctx, span := s.tracer.Start(ctx, "pipeline.validate")
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "validation panicked",
				"number", req.Number,
				"panic", rec,
			)
			result.AddError("pipeline", fmt.Sprintf("panic: %v", rec), "FATAL")
			result.Summary = summaryCritical
			result.Diagnostics.ResponseTimeMs = time.Since(start).Milliseconds()
			s.emit(ctx, event.Event{
				Type:   event.TypeValidationError,
				Number: req.Number,
				Error:  fmt.Sprintf("panic: %v", rec),
			})
			s.checkHealth(ctx)
		}
	}()

	s.emit(ctx, event.Event{Type: event.TypeValidationStarted, Number: req.Number})

	if s.limiter != nil {
		waitStart := time.Now()
		if err := s.limiter.Acquire(ctx); err != nil {
			result.AddError("rate_limit", err.Error(), "CANCELLED")
			result.Summary = summaryCancelled
			result.Diagnostics.ResponseTimeMs = time.Since(start).Milliseconds()
			s.emit(ctx, event.Event{Type: event.TypeValidationError, Number: req.Number, Error: err.Error()})
			return result
		}
		s.metrics.ObserveRateLimitWait(time.Since(waitStart))
	}

	accountID, ok := normalize(req.Number, s.cfg.DomainSuffix)
	if !ok {
		result.AddError("normalize", "input contains no digits", "INVALID_INPUT")
		result.Summary = summaryInvalidInput
		result.Diagnostics.ResponseTimeMs = time.Since(start).Milliseconds()
		s.emit(ctx, event.Event{Type: event.TypeValidationError, Number: req.Number, Error: "input contains no digits"})
		return result
	}
	result.AccountID = accountID
	span.SetAttributes(attribute.String("account_id", accountID))

	if s.cache != nil && !req.ForceRefresh {
		if cached, err := s.cache.Get(ctx, cache.Key(accountID)); err == nil {
			s.metrics.ObserveCache(true)
			s.emit(ctx, event.Event{
				Type:      event.TypeCacheHit,
				Number:    req.Number,
				AccountID: accountID,
				Result:    cached.Clone(),
			})
			return cached
		}
		s.metrics.ObserveCache(false)
	}

	registered := s.orch.CheckRegistration(ctx, result)
	if s.plugins != nil {
		s.plugins.FireRegister(ctx, accountID, registered)
	}

	if registered {
		s.orch.RunProbes(ctx, result)
		s.classify(result)
	} else {
		// Unreachable accounts are treated as permanently unavailable;
		// probing and classification never run for them.
		result.Ban.IsBanned = true
		result.Ban.Kind = models.BanPermanent
	}

	deriveReview(result)
	s.finalize(ctx, result, start)
	return result
}

// classify turns the accumulated error evidence into a ban verdict. With the
// scoring classifier disabled the two-rule heuristic applies instead.
func (s *Service) classify(res *models.ValidationResult) {
	details := res.Diagnostics.ErrorDetails

	if s.classifier != nil {
		pred := s.classifier.Analyze(details, classifier.ProbeSummary{
			Executed:   res.Diagnostics.ProbesExecuted,
			Successful: res.Diagnostics.ProbesSuccessful,
		})
		if pred.Kind != models.BanNone {
			res.Ban.IsBanned = true
			res.Ban.Kind = pred.Kind
			conf := pred.Confidence
			res.Ban.Confidence = &conf
			res.AddDetection("pattern_classifier")
		}
		return
	}

	var texts []string
	for _, d := range details {
		texts = append(texts, strings.ToLower(d.Message))
	}
	if kind := classifier.MatchKeywords(strings.Join(texts, " ")); kind != models.BanNone {
		res.Ban.IsBanned = true
		res.Ban.Kind = kind
		res.AddDetection("keyword_match")
		return
	}
	if res.Diagnostics.ProbesExecuted > 0 && res.Diagnostics.ProbesSuccessful == 0 {
		res.Ban.IsBanned = true
		res.Ban.Kind = models.BanViolation
		res.AddDetection("zero_successful_probes")
	}
}

// deriveReview fills review options and recommendations from a fixed lookup
// by ban kind.
func deriveReview(res *models.ValidationResult) {
	switch {
	case !res.Ban.IsBanned:
		res.Review = models.ReviewOptions{Kind: models.ReviewNone}
		res.Recommendations = append(res.Recommendations,
			"Account is active and reachable",
			"No action required",
		)
	case res.Ban.Kind == models.BanSpam:
		res.Review = models.ReviewOptions{
			Available:     true,
			Kind:          models.ReviewSelfAppeal,
			EstimatedTime: "24-48 hours",
		}
		res.Recommendations = append(res.Recommendations,
			"Request a review directly from the application",
			"Stop bulk or automated messaging while the review is pending",
			"Ask frequent contacts to keep the number in their address books",
		)
	case res.Ban.Kind == models.BanViolation:
		res.Review = models.ReviewOptions{
			Available:     true,
			Kind:          models.ReviewSupportRequired,
			EstimatedTime: "3-7 days",
		}
		res.Recommendations = append(res.Recommendations,
			"Contact support and reference the account identifier",
			"Review the terms of service before appealing",
			"Prepare evidence of legitimate use for the appeal",
		)
	default:
		res.Review = models.ReviewOptions{Kind: models.ReviewNone}
		res.Recommendations = append(res.Recommendations,
			"The account cannot be restored",
			"Register a new account with a different number",
		)
	}
}

// finalize computes derived fields, stores the result, and fans out the
// completion notifications.
func (s *Service) finalize(ctx context.Context, res *models.ValidationResult, start time.Time) {
	res.Active = res.Registered && !res.Ban.IsBanned
	switch {
	case !res.Registered:
		res.Summary = summaryNotRegistered
	case res.Ban.IsBanned:
		res.Summary = fmt.Sprintf(summaryBannedFmt, res.Ban.Kind)
	default:
		res.Summary = summaryActive
	}
	res.Diagnostics.ResponseTimeMs = time.Since(start).Milliseconds()

	s.metrics.ObserveValidation(string(res.Ban.Kind))

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.Key(res.AccountID), res); err != nil {
			s.logger.WarnContext(ctx, "cache store failed",
				"account", res.AccountID,
				"error", err,
			)
		}
	}
	if s.plugins != nil {
		s.plugins.FirePostValidation(ctx, res)
	}

	s.emit(ctx, event.Event{
		Type:      event.TypeValidationCompleted,
		Number:    res.InputNumber,
		AccountID: res.AccountID,
		Result:    res.Clone(),
	})
	s.checkHealth(ctx)
}

// emit feeds the analytics accumulator synchronously, then fans out to the
// bus. Listeners on the bus run on their own goroutines and may observe the
// event later.
func (s *Service) emit(ctx context.Context, ev event.Event) {
	if s.analytics != nil {
		s.analytics.Handle(ctx, ev)
	}
	if s.bus != nil {
		s.bus.Publish(ctx, ev)
	}
}

// CacheStats exposes the cache counters for the operational surface.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, bool) {
	if s.cache == nil {
		return cache.Stats{}, false
	}
	return s.cache.Stats(ctx), true
}

// ClearCache drops every cached result.
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

// LimiterStatus exposes the limiter occupancy for the operational surface.
func (s *Service) LimiterStatus() (ratelimit.Status, bool) {
	if s.limiter == nil {
		return ratelimit.Status{}, false
	}
	return s.limiter.Status(), true
}

// AnalyticsSnapshot exposes the accumulator counters.
func (s *Service) AnalyticsSnapshot() (analytics.Stats, bool) {
	if s.analytics == nil {
		return analytics.Stats{}, false
	}
	return s.analytics.Snapshot(), true
}

// normalize strips every non-digit rune and appends the domain suffix.
func normalize(raw, suffix string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String() + suffix, true
}
