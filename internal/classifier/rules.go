package classifier

import (
	"regexp"

	"github.com/af-corp/queryrouter/internal/types"
)

// Rule is one pattern in the classification cascade.
type Rule struct {
	Name       string
	Intent     types.Intent
	Regex      *regexp.Regexp
	Confidence float64 // 0.0 to 1.0

	// NeedsEntity restricts the rule to queries naming at least one entity.
	NeedsEntity bool
}

// DefaultRules returns the built-in pattern rules. Retrieval is decided from
// catalog overlap rather than a fixed pattern; the doc cue rules below only
// cover queries that point at documents without naming a known topic.
// Calculation rules see the query with dates masked, so 2024-05-01 is not a
// subtraction.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "arithmetic_expression",
			Intent:     types.IntentCalculation,
			Regex:      regexp.MustCompile(`(?i)\d(\.\d+)?\s*\)*\s*([-+*/×÷]|\bplus\b|\bminus\b|\btimes\b|\bmultiplied\s+by\b|\bdivided\s+by\b)\s*\(*\s*-?\d`),
			Confidence: 0.95,
		},
		{
			Name:       "calculation_verb",
			Intent:     types.IntentCalculation,
			Regex:      regexp.MustCompile(`(?is)\b(calculate|compute|evaluate|sum)\b.*\d`),
			Confidence: 0.90,
		},
		{
			Name:       "strong_freshness_cue",
			Intent:     types.IntentWebSearch,
			Regex:      regexp.MustCompile(`(?i)\b(latest|news|today|breaking)\b`),
			Confidence: 0.90,
		},
		{
			Name:       "freshness_cue",
			Intent:     types.IntentWebSearch,
			Regex:      regexp.MustCompile(`(?i)\b(recent|recently|current|currently|now|updates?|newest|yesterday|trending|this\s+(week|month|year))\b`),
			Confidence: 0.85,
		},
		{
			Name:        "entity_freshness",
			Intent:      types.IntentWebSearch,
			Regex:       regexp.MustCompile(`(?i)\b(launch(es|ed)?|releases?|released|prices?|scores?|stocks?|earnings|elections?)\b`),
			Confidence:  0.85,
			NeedsEntity: true,
		},
		{
			Name:       "document_cue",
			Intent:     types.IntentRetrieval,
			Regex:      regexp.MustCompile(`(?i)\b(documents?|docs|documentation|according\s+to|knowledge\s+base)\b`),
			Confidence: 0.70,
		},
	}
}
