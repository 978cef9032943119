package models

import "time"

// BanKind classifies why an account is unreachable.
type BanKind string

const (
	BanNone      BanKind = "none"
	BanSpam      BanKind = "spam"
	BanViolation BanKind = "violation"
	BanPermanent BanKind = "permanent"
)

// IsValid checks if the ban kind is one of the supported enum values.
func (k BanKind) IsValid() bool {
	switch k {
	case BanNone, BanSpam, BanViolation, BanPermanent:
		return true
	}
	return false
}

// ReviewKind identifies the appeal path available for a banned account.
type ReviewKind string

const (
	ReviewNone            ReviewKind = "none"
	ReviewSelfAppeal      ReviewKind = "self_appeal"
	ReviewSupportRequired ReviewKind = "support_required"
)

// AgeClass buckets an account by how long ago its status was set.
type AgeClass string

const (
	AgeNew     AgeClass = "new"
	AgeMedium  AgeClass = "medium"
	AgeOld     AgeClass = "old"
	AgeUnknown AgeClass = "unknown"
)

// ProbeStatus is the terminal outcome of a single probe.
type ProbeStatus string

const (
	ProbeSuccess ProbeStatus = "success"
	ProbeFailed  ProbeStatus = "failed"
	ProbeTimeout ProbeStatus = "timeout"
)

// ErrorDetail captures one piece of error evidence gathered during probing.
// The classifier consumes these; they are never propagated as Go errors past
// the orchestrator.
type ErrorDetail struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeResult records the terminal state of one probe execution.
type ProbeResult struct {
	Name       string      `json:"name"`
	Status     ProbeStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
}

// BanVerdict is the synthesized ban conclusion for one account.
type BanVerdict struct {
	IsBanned         bool     `json:"is_banned"`
	Kind             BanKind  `json:"kind"`
	DetectionMethods []string `json:"detection_methods"`
	Confidence       *float64 `json:"confidence,omitempty"`
}

// ReviewOptions describes whether and how a ban can be appealed.
type ReviewOptions struct {
	Available     bool       `json:"available"`
	Kind          ReviewKind `json:"kind"`
	EstimatedTime string     `json:"estimated_time,omitempty"`
}

// AccountInfo aggregates the signals the individual probes observed.
type AccountInfo struct {
	HasStatus         bool     `json:"has_status"`
	StatusText        string   `json:"status_text,omitempty"`
	HasProfilePicture bool     `json:"has_profile_picture"`
	IsBusinessAccount bool     `json:"is_business_account"`
	AgeClass          AgeClass `json:"age_class"`
	PresenceAvailable bool     `json:"presence_available"`
}

// Diagnostics carries execution evidence for operators and the classifier.
type Diagnostics struct {
	ResponseTimeMs   int64         `json:"response_time_ms"`
	ProbesExecuted   int           `json:"probes_executed"`
	ProbesSuccessful int           `json:"probes_successful"`
	ErrorDetails     []ErrorDetail `json:"error_details"`
	FallbacksUsed    []string      `json:"fallbacks_used"`
	ProbeResults     []ProbeResult `json:"probe_results"`
}

// ValidationResult is the mutable accumulator for one validation run. It is
// created fresh per validation, owned by the pipeline call that created it,
// and must not be mutated after it is returned to the caller.
type ValidationResult struct {
	InputNumber string    `json:"input_number"`
	AccountID   string    `json:"account_id"`
	Registered  bool      `json:"registered"`
	Active      bool      `json:"active"`
	CheckedAt   time.Time `json:"checked_at"`

	Ban     BanVerdict    `json:"ban"`
	Review  ReviewOptions `json:"review"`
	Account AccountInfo   `json:"account"`

	Diagnostics     Diagnostics `json:"diagnostics"`
	Recommendations []string    `json:"recommendations"`
	Summary         string      `json:"summary"`
}

// NewValidationResult constructs an empty accumulator for the given input.
func NewValidationResult(inputNumber string) *ValidationResult {
	return &ValidationResult{
		InputNumber: inputNumber,
		CheckedAt:   time.Now(),
		Ban:         BanVerdict{Kind: BanNone, DetectionMethods: []string{}},
		Review:      ReviewOptions{Kind: ReviewNone},
		Account:     AccountInfo{AgeClass: AgeUnknown},
		Diagnostics: Diagnostics{
			ErrorDetails:  []ErrorDetail{},
			FallbacksUsed: []string{},
			ProbeResults:  []ProbeResult{},
		},
		Recommendations: []string{},
	}
}

// AddError appends one piece of error evidence.
func (r *ValidationResult) AddError(stage, message, code string) {
	r.Diagnostics.ErrorDetails = append(r.Diagnostics.ErrorDetails, ErrorDetail{
		Stage:     stage,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	})
}

// AddDetection records which signal contributed to a conclusion.
func (r *ValidationResult) AddDetection(tag string) {
	r.Ban.DetectionMethods = append(r.Ban.DetectionMethods, tag)
}

// AddFallback records a retried probe attempt.
func (r *ValidationResult) AddFallback(tag string) {
	r.Diagnostics.FallbacksUsed = append(r.Diagnostics.FallbacksUsed, tag)
}

// SuccessRate returns the fraction of executed probes that succeeded.
// Returns 1.0 when no probes ran so an idle account does not look degraded.
func (r *ValidationResult) SuccessRate() float64 {
	if r.Diagnostics.ProbesExecuted == 0 {
		return 1.0
	}
	return float64(r.Diagnostics.ProbesSuccessful) / float64(r.Diagnostics.ProbesExecuted)
}

// Clone returns a deep copy. The cache stores clones so a cached snapshot is
// isolated from any later aliasing by callers.
func (r *ValidationResult) Clone() *ValidationResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Ban.DetectionMethods = cloneSlice(r.Ban.DetectionMethods)
	if r.Ban.Confidence != nil {
		c := *r.Ban.Confidence
		out.Ban.Confidence = &c
	}
	out.Diagnostics.ErrorDetails = cloneSlice(r.Diagnostics.ErrorDetails)
	out.Diagnostics.FallbacksUsed = cloneSlice(r.Diagnostics.FallbacksUsed)
	out.Diagnostics.ProbeResults = cloneSlice(r.Diagnostics.ProbeResults)
	out.Recommendations = cloneSlice(r.Recommendations)
	return &out
}

// cloneSlice copies a slice while preserving nil versus empty, so a clone
// compares deep-equal to its source.
func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
