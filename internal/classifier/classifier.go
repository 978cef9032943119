package classifier

import (
	"sync"
	"time"

	"reachcheck/internal/models"
)

const (
	// scoreThreshold is the minimum normalized score a candidate needs to
	// produce a verdict.
	scoreThreshold = 0.3

	// noSignalConfidence is returned when no candidate clears the threshold.
	// Deliberately non-zero: callers must not read it as "confidently not
	// banned", only as "no signal either way".
	noSignalConfidence = 0.5

	// historyCapacity bounds the rolling analysis history.
	historyCapacity = 1000

	// minHistorySamples is the floor below which no accuracy estimate is
	// produced.
	minHistorySamples = 10
)

// Prediction is the classifier's verdict over one batch of error evidence.
type Prediction struct {
	Kind       models.BanKind `json:"kind"`
	Confidence float64        `json:"confidence"`
	MatchCount int            `json:"match_count,omitempty"`
}

// historyEntry retains one analysis for the advisory accuracy estimator.
type historyEntry struct {
	Features   FeatureSet
	Prediction Prediction
	Timestamp  time.Time
}

// Classifier turns raw probe failures into a ban-kind verdict with a
// confidence score. Each Analyze call is stateless except for the bounded
// rolling history.
type Classifier struct {
	mu      sync.Mutex
	history []historyEntry
}

func New() *Classifier {
	return &Classifier{}
}

// Analyze extracts features from the error evidence and scores every
// candidate ban kind against the static pattern table. A candidate scores
// +weight per keyword found in the concatenated error text and +weight*1.5
// per extracted error code that also appears in its keyword set; a keyword
// and its corresponding code are double-counted on purpose, rewarding
// corroborating signals. Low probe success (+0.5) and an accumulation of
// failure patterns (+0.3 each beyond two) raise every candidate.
func (c *Classifier) Analyze(details []models.ErrorDetail, summary ProbeSummary) Prediction {
	features := ExtractFeatures(details, summary)
	prediction := classify(features)
	c.record(features, prediction)
	return prediction
}

func classify(features FeatureSet) Prediction {
	var best Prediction
	bestScore := -1.0

	for _, p := range patternTable {
		raw := 0.0
		matches := 0

		for _, kw := range p.keywords {
			if contains(features.Text, kw) {
				raw += p.weight
				matches++
			}
		}
		for _, code := range features.Codes {
			if keywordSetContains(p.keywords, code) {
				raw += p.weight * 1.5
				matches++
			}
		}
		if features.SuccessRate < 0.3 {
			raw += 0.5
		}
		if len(features.Patterns) > 2 {
			raw += 0.3 * float64(len(features.Patterns))
		}

		normalized := raw / 5
		if normalized > 1.0 {
			normalized = 1.0
		}

		// Strictly greater: ties resolve to the earlier table entry.
		if normalized > bestScore {
			bestScore = normalized
			best = Prediction{Kind: p.kind, Confidence: normalized, MatchCount: matches}
		}
	}

	if bestScore < scoreThreshold {
		return Prediction{Kind: models.BanNone, Confidence: noSignalConfidence}
	}
	return best
}

func keywordSetContains(keywords []string, code string) bool {
	for _, kw := range keywords {
		if kw == code {
			return true
		}
	}
	return false
}

// record appends to the bounded rolling history.
func (c *Classifier) record(features FeatureSet, prediction Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, historyEntry{
		Features:   features,
		Prediction: prediction,
		Timestamp:  time.Now(),
	})
	if len(c.history) > historyCapacity {
		c.history = c.history[len(c.history)-historyCapacity:]
	}
}

// HistorySize reports how many analyses are retained.
func (c *Classifier) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// EstimateAccuracy returns an advisory accuracy estimate, or nil when fewer
// than ten analyses exist. Without ground-truth labels this is only the mean
// prediction confidence over the retained history; treat it as a placeholder
// until labeled outcomes are fed back.
func (c *Classifier) EstimateAccuracy() *float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) < minHistorySamples {
		return nil
	}

	total := 0.0
	for _, e := range c.history {
		total += e.Prediction.Confidence
	}
	estimate := total / float64(len(c.history))
	return &estimate
}
