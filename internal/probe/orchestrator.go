package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"reachcheck/internal/models"
	"reachcheck/internal/platform/metrics"
	"reachcheck/pkg/sentinel"
)

// Stage names recorded into error evidence and probe results.
const (
	StageRegistration    = "registration"
	StageStatus          = "status"
	StageProfilePicture  = "profile_picture"
	StageBusinessProfile = "business_profile"
	StagePresence        = "presence"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultPresenceMargin = 2 * time.Second
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = time.Second

	// profilePictureSize is the preview size requested from the remote
	// side; the payload itself is opaque to the orchestrator.
	profilePictureSize = "preview"

	accountAgeNew    = 30 * 24 * time.Hour
	accountAgeMedium = 180 * 24 * time.Hour
)

// Config controls probe execution for one orchestrator instance.
type Config struct {
	// Timeout bounds each individual probe call.
	Timeout time.Duration
	// PresenceMargin extends the presence probe's timeout to tolerate
	// subscription latency.
	PresenceMargin time.Duration
	// Parallel launches all probes at once and joins on all of them;
	// sequential mode runs them strictly one at a time.
	Parallel bool
	// Presence enables the optional presence probe.
	Presence bool
	// Retry re-attempts non-fatal probe failures up to MaxRetries times
	// with linearly increasing delay (RetryBaseDelay * attempt).
	Retry          bool
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PresenceMargin <= 0 {
		c.PresenceMargin = DefaultPresenceMargin
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return c
}

// Orchestrator drives the per-account probe state machine: registration
// first, then the independent probes. It never propagates probe errors past
// itself; everything lands in the result's error evidence.
type Orchestrator struct {
	client  Client
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator constructs an orchestrator for the given remote connection.
func NewOrchestrator(client Client, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("probe client is required")
	}

	o := &Orchestrator{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CheckRegistration runs the registration lookup and marks the result. A
// lookup failure records error evidence and leaves the account unregistered;
// the pipeline treats that as terminal.
func (o *Orchestrator) CheckRegistration(ctx context.Context, res *models.ValidationResult) bool {
	start := time.Now()
	rows, err := o.callExistence(ctx, res.AccountID)
	o.metrics.ObserveProbe(StageRegistration, time.Since(start))

	if err != nil {
		pe := Classify(StageRegistration, err)
		res.AddError(StageRegistration, pe.Message, pe.Code)
		o.logger.WarnContext(ctx, "registration check failed",
			"account", res.AccountID,
			"code", pe.Code,
		)
		return false
	}

	for _, row := range rows {
		if row.Exists {
			res.Registered = true
			res.Active = true
			res.AddDetection("registration_check")
			return true
		}
	}
	return false
}

func (o *Orchestrator) callExistence(ctx context.Context, accountID string) ([]Existence, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	type reply struct {
		rows []Existence
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{nil, fmt.Errorf("registration check panicked: %v", r)}
			}
		}()
		rows, err := o.client.CheckExistence(cctx, accountID)
		done <- reply{rows, err}
	}()

	select {
	case r := <-done:
		return r.rows, r.err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("registration check timed out after %s: %w", o.cfg.Timeout, sentinel.ErrTimeout)
	}
}

// applyFunc folds a successful probe payload into the accumulator. Probes
// return one instead of mutating the result directly so concurrent execution
// keeps a single writer: all outcomes are applied sequentially after the join.
type applyFunc func(res *models.ValidationResult)

type probeSpec struct {
	name     string
	priority int
	timeout  time.Duration
	call     func(ctx context.Context) (applyFunc, error)
}

// outcome is the terminal record of one probe's execution, including all
// retry evidence.
type outcome struct {
	name      string
	status    models.ProbeStatus
	duration  time.Duration
	apply     applyFunc
	evidence  []models.ErrorDetail
	fallbacks []string
}

// RunProbes executes the probe set for a registered account and folds every
// outcome into the result. Concurrent mode never cancels sibling probes; all
// are allowed to finish or time out independently.
func (o *Orchestrator) RunProbes(ctx context.Context, res *models.ValidationResult) {
	specs := o.buildProbes(res.AccountID)
	sort.SliceStable(specs, func(i, j int) bool { return specs[i].priority < specs[j].priority })

	outcomes := make([]outcome, len(specs))
	if o.cfg.Parallel {
		var wg sync.WaitGroup
		for i, spec := range specs {
			wg.Add(1)
			go func(i int, spec probeSpec) {
				defer wg.Done()
				outcomes[i] = o.executeProbe(ctx, spec)
			}(i, spec)
		}
		wg.Wait()
	} else {
		for i, spec := range specs {
			outcomes[i] = o.executeProbe(ctx, spec)
		}
	}

	for _, out := range outcomes {
		o.applyOutcome(res, out)
	}
}

func (o *Orchestrator) buildProbes(accountID string) []probeSpec {
	specs := []probeSpec{
		{
			name:     StageStatus,
			priority: 1,
			timeout:  o.cfg.Timeout,
			call: func(ctx context.Context) (applyFunc, error) {
				info, err := o.client.FetchStatus(ctx, accountID)
				if err != nil {
					return nil, err
				}
				return func(res *models.ValidationResult) {
					if info == nil {
						return
					}
					res.Account.HasStatus = true
					res.Account.StatusText = info.Text
					if info.SetAt != nil {
						res.Account.AgeClass = classifyAge(*info.SetAt)
					}
				}, nil
			},
		},
		{
			name:     StageProfilePicture,
			priority: 2,
			timeout:  o.cfg.Timeout,
			call: func(ctx context.Context) (applyFunc, error) {
				payload, err := o.client.FetchProfilePicture(ctx, accountID, profilePictureSize)
				if err != nil {
					return nil, err
				}
				return func(res *models.ValidationResult) {
					if len(payload) == 0 {
						return
					}
					res.Account.HasProfilePicture = true
					res.AddDetection(StageProfilePicture)
				}, nil
			},
		},
		{
			name:     StageBusinessProfile,
			priority: 3,
			timeout:  o.cfg.Timeout,
			call: func(ctx context.Context) (applyFunc, error) {
				payload, err := o.client.FetchBusinessProfile(ctx, accountID)
				if err != nil {
					return nil, err
				}
				return func(res *models.ValidationResult) {
					if len(payload) == 0 {
						return
					}
					res.Account.IsBusinessAccount = true
					res.AddDetection(StageBusinessProfile)
				}, nil
			},
		},
	}

	if o.cfg.Presence {
		specs = append(specs, probeSpec{
			name:     StagePresence,
			priority: 4,
			timeout:  o.cfg.Timeout + o.cfg.PresenceMargin,
			call: func(ctx context.Context) (applyFunc, error) {
				payload, err := o.client.SubscribePresence(ctx, accountID)
				if err != nil {
					return nil, err
				}
				return func(res *models.ValidationResult) {
					if len(payload) == 0 {
						return
					}
					res.Account.PresenceAvailable = true
					res.AddDetection(StagePresence)
				}, nil
			},
		})
	}

	return specs
}

// executeProbe races one probe against its timeout and retries non-fatal
// failures with linearly increasing delay. Every failed attempt leaves error
// evidence; the exhausted final retry is recorded under a distinct stage.
func (o *Orchestrator) executeProbe(ctx context.Context, spec probeSpec) outcome {
	out := outcome{name: spec.name, status: models.ProbeFailed}

	maxAttempts := 1
	if o.cfg.Retry {
		maxAttempts += o.cfg.MaxRetries
	}

	start := time.Now()
	defer func() { out.duration = time.Since(start) }()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := o.cfg.RetryBaseDelay * time.Duration(attempt)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out
			case <-timer.C:
			}
			out.fallbacks = append(out.fallbacks, fmt.Sprintf("retry_%s_%d", spec.name, attempt))
		}

		apply, err := o.callProbe(ctx, spec)
		if err == nil {
			out.status = models.ProbeSuccess
			out.apply = apply
			return out
		}

		pe := Classify(spec.name, err)
		stage := spec.name
		switch {
		case attempt > 0 && attempt == maxAttempts-1:
			stage = spec.name + "_retry_exhausted"
		case attempt > 0:
			stage = fmt.Sprintf("%s_retry_%d", spec.name, attempt)
		}
		out.evidence = append(out.evidence, models.ErrorDetail{
			Stage:     stage,
			Message:   pe.Message,
			Code:      pe.Code,
			Timestamp: time.Now(),
		})

		if errors.Is(err, sentinel.ErrTimeout) {
			out.status = models.ProbeTimeout
		} else {
			out.status = models.ProbeFailed
		}

		if pe.Fatal {
			o.logger.WarnContext(ctx, "probe failed fatally, not retrying",
				"probe", spec.name,
				"code", pe.Code,
			)
			return out
		}
	}

	return out
}

// callProbe races the probe call against its own timeout. The timeout
// cancels only this probe's wait; if the underlying transport does not honor
// cancellation the late result is simply discarded.
func (o *Orchestrator) callProbe(ctx context.Context, spec probeSpec) (applyFunc, error) {
	cctx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	type reply struct {
		apply applyFunc
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{nil, fmt.Errorf("%s panicked: %v", spec.name, r)}
			}
		}()
		apply, err := spec.call(cctx)
		done <- reply{apply, err}
	}()

	select {
	case r := <-done:
		return r.apply, r.err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s timed out after %s: %w", spec.name, spec.timeout, sentinel.ErrTimeout)
	}
}

// applyOutcome folds one probe outcome into the accumulator. Runs on the
// pipeline goroutine only, after all probes joined.
func (o *Orchestrator) applyOutcome(res *models.ValidationResult, out outcome) {
	res.Diagnostics.ProbesExecuted++
	res.Diagnostics.ProbeResults = append(res.Diagnostics.ProbeResults, models.ProbeResult{
		Name:       out.name,
		Status:     out.status,
		DurationMs: out.duration.Milliseconds(),
	})
	res.Diagnostics.ErrorDetails = append(res.Diagnostics.ErrorDetails, out.evidence...)
	res.Diagnostics.FallbacksUsed = append(res.Diagnostics.FallbacksUsed, out.fallbacks...)

	o.metrics.ObserveProbe(out.name, out.duration)

	if out.status == models.ProbeSuccess {
		res.Diagnostics.ProbesSuccessful++
		if out.apply != nil {
			out.apply(res)
		}
	}
}

// classifyAge buckets the account by when its status was last set.
func classifyAge(setAt time.Time) models.AgeClass {
	age := time.Since(setAt)
	switch {
	case age < accountAgeNew:
		return models.AgeNew
	case age < accountAgeMedium:
		return models.AgeMedium
	default:
		return models.AgeOld
	}
}
