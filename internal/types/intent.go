package types

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentRetrieval   Intent = "retrieval"
	IntentWebSearch   Intent = "web_search"
	IntentCalculation Intent = "calculation"
	IntentDirect      Intent = "direct"
)

// Priority returns the position of the intent in the classification cascade.
// Lower values are evaluated first.
func (i Intent) Priority() int {
	switch i {
	case IntentCalculation:
		return 0
	case IntentWebSearch:
		return 1
	case IntentRetrieval:
		return 2
	case IntentDirect:
		return 3
	default:
		return -1
	}
}

// HasFallback reports whether a tool failure on this intent re-routes to DIRECT.
func (i Intent) HasFallback() bool {
	return i == IntentRetrieval || i == IntentWebSearch
}

func (i Intent) String() string { return string(i) }

func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentRetrieval, IntentWebSearch, IntentCalculation, IntentDirect:
		return Intent(s), true
	default:
		return "", false
	}
}

// ClassificationResult is produced once per query by the classifier.
type ClassificationResult struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Signals    []string `json:"signals,omitempty"`
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
