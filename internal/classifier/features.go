package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"reachcheck/internal/models"
)

// Timing classes for the inter-error arrival pattern.
const (
	TimingRapid   = "rapid"
	TimingDelayed = "delayed"
)

// rapidThreshold splits rapid from delayed error bursts by mean inter-arrival
// interval.
const rapidThreshold = time.Second

var codePattern = regexp.MustCompile(`\b[45]\d{2}\b`)

// FeatureSet is the transient per-call feature extraction over accumulated
// error evidence. It is not persisted beyond the call except as a bounded
// rolling history entry for accuracy estimation.
type FeatureSet struct {
	Text        string
	Codes       []string
	ErrorCount  int
	SuccessRate float64
	Patterns    []string
	Timing      string
}

// ProbeSummary carries the aggregate probe counts the classifier needs.
type ProbeSummary struct {
	Executed   int
	Successful int
}

// Rate returns the probe success rate; 1.0 when no probes ran.
func (p ProbeSummary) Rate() float64 {
	if p.Executed == 0 {
		return 1.0
	}
	return float64(p.Successful) / float64(p.Executed)
}

// ExtractFeatures builds the feature set from raw error evidence.
func ExtractFeatures(details []models.ErrorDetail, summary ProbeSummary) FeatureSet {
	fs := FeatureSet{
		ErrorCount:  len(details),
		SuccessRate: summary.Rate(),
	}

	var texts []string
	seen := make(map[string]bool)
	for _, d := range details {
		texts = append(texts, strings.ToLower(d.Message))

		code := d.Code
		if code == "" {
			code = codePattern.FindString(d.Message)
		}
		if code != "" && !seen[code] {
			seen[code] = true
			fs.Codes = append(fs.Codes, code)
		}
	}
	fs.Text = strings.Join(texts, " ")

	fs.Patterns = identifyFailurePatterns(details)
	fs.Timing = timingClass(details)
	return fs
}

// identifyFailurePatterns tags sequential failure runs and repeated codes.
func identifyFailurePatterns(details []models.ErrorDetail) []string {
	var patterns []string
	if len(details) >= 3 {
		patterns = append(patterns, "sequential_failures")
	}

	counts := make(map[string]int)
	for _, d := range details {
		if d.Code != "" {
			counts[d.Code]++
		}
	}
	var repeated []string
	for code, n := range counts {
		if n >= 2 {
			repeated = append(repeated, fmt.Sprintf("repeated_%s", code))
		}
	}
	sort.Strings(repeated)
	return append(patterns, repeated...)
}

// timingClass classifies the mean inter-error interval. Undefined (empty)
// with fewer than two timestamped errors.
func timingClass(details []models.ErrorDetail) string {
	var stamps []time.Time
	for _, d := range details {
		if !d.Timestamp.IsZero() {
			stamps = append(stamps, d.Timestamp)
		}
	}
	if len(stamps) < 2 {
		return ""
	}

	var total time.Duration
	for i := 1; i < len(stamps); i++ {
		total += stamps[i].Sub(stamps[i-1])
	}
	avg := total / time.Duration(len(stamps)-1)
	if avg < rapidThreshold {
		return TimingRapid
	}
	return TimingDelayed
}

func contains(text, keyword string) bool {
	return strings.Contains(text, keyword)
}
