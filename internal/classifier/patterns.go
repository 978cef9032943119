package classifier

import "reachcheck/internal/models"

// pattern maps one ban kind to its matching keywords, score weight, and base
// confidence. The table is an ordered slice so tie-breaks between candidates
// with identical scores are deterministic: first entry wins.
type pattern struct {
	kind           models.BanKind
	keywords       []string
	weight         float64
	baseConfidence float64
}

// patternTable is the static evidence vocabulary. Keywords are matched as
// substrings against the lowercased concatenation of all error messages;
// numeric codes listed here additionally corroborate when they appear as
// extracted error codes.
var patternTable = []pattern{
	{
		kind: models.BanSpam,
		keywords: []string{
			"spam", "429", "too many requests", "rate limit",
			"flood", "temporarily blocked",
		},
		weight:         1.0,
		baseConfidence: 0.75,
	},
	{
		kind: models.BanViolation,
		keywords: []string{
			"violation", "403", "forbidden", "policy",
			"terms of service", "abuse", "suspended",
		},
		weight:         1.2,
		baseConfidence: 0.80,
	},
	{
		kind: models.BanPermanent,
		keywords: []string{
			"permanently", "banned", "terminated", "account_deleted",
			"deleted", "404", "not found", "401", "unauthorized",
		},
		weight:         1.5,
		baseConfidence: 0.90,
	},
}

// MatchKeywords returns the first ban kind whose keyword list matches the
// given lowercased error text, in table order. This is the simple two-rule
// fallback used when the scoring classifier is disabled.
func MatchKeywords(text string) models.BanKind {
	for _, p := range patternTable {
		for _, kw := range p.keywords {
			if contains(text, kw) {
				return p.kind
			}
		}
	}
	return models.BanNone
}
