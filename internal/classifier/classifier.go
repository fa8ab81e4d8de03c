package classifier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/af-corp/queryrouter/internal/catalog"
	"github.com/af-corp/queryrouter/internal/types"
)

const (
	// multiCueConfidence is the floor applied when more than one rule of the
	// same intent matches.
	multiCueConfidence = 0.90

	overlapBase     = 0.70
	overlapStep     = 0.05
	overlapMaxSteps = 3

	directConfidence = 1.0
)

// cascade is the evaluation order, by Intent.Priority. First match wins;
// DIRECT is the default and is never matched.
var cascade = func() []types.Intent {
	out := []types.Intent{types.IntentRetrieval, types.IntentWebSearch, types.IntentCalculation}
	slices.SortFunc(out, func(a, b types.Intent) int { return a.Priority() - b.Priority() })
	return out
}()

// Classifier assigns an intent to a query using an ordered rule table and the
// collection catalog. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	rules      map[types.Intent][]Rule
	minOverlap int
}

// New creates a classifier with the default rules. minOverlap is the number of
// distinct query keywords that must hit a collection vocabulary.
func New(minOverlap int) *Classifier {
	return NewWithRules(DefaultRules(), minOverlap)
}

func NewWithRules(rules []Rule, minOverlap int) *Classifier {
	if minOverlap < 1 {
		minOverlap = 1
	}
	byIntent := make(map[types.Intent][]Rule)
	for _, r := range rules {
		byIntent[r.Intent] = append(byIntent[r.Intent], r)
	}
	return &Classifier{rules: byIntent, minOverlap: minOverlap}
}

// Classify never fails. A query with no signal is DIRECT with confidence 1.0.
// Entities found in the query are appended to Signals as "entity:<name>".
func (c *Classifier) Classify(q types.Query, snap *catalog.Snapshot) types.ClassificationResult {
	a := Analyze(q.Text)
	res := c.classify(a, q.Text, snap)
	res.Signals = append(res.Signals, a.EntitySignals()...)
	return res
}

func (c *Classifier) classify(a Analysis, text string, snap *catalog.Snapshot) types.ClassificationResult {
	for _, intent := range cascade {
		if intent == types.IntentRetrieval {
			if res, ok := c.classifyOverlap(a, snap); ok {
				return res
			}
		}
		subject := text
		if intent == types.IntentCalculation {
			subject = a.Masked
		}
		if res, ok := c.matchRules(intent, subject, a); ok {
			return res
		}
	}
	return types.ClassificationResult{
		Intent:     types.IntentDirect,
		Confidence: directConfidence,
		Rationale:  "no calculation, freshness or collection signal; answering directly",
	}
}

func (c *Classifier) matchRules(intent types.Intent, text string, a Analysis) (types.ClassificationResult, bool) {
	var hits []string
	conf := 0.0
	cues := 0
	for _, r := range c.rules[intent] {
		if r.NeedsEntity && len(a.Entities) == 0 {
			continue
		}
		n := len(r.Regex.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		cues += n
		hits = append(hits, r.Name)
		if r.Confidence > conf {
			conf = r.Confidence
		}
	}
	if len(hits) == 0 {
		return types.ClassificationResult{}, false
	}
	// "recent updates" counts as two cues even though both come from one rule.
	if intent == types.IntentWebSearch && cues > 1 && conf < multiCueConfidence {
		conf = multiCueConfidence
	}
	return types.ClassificationResult{
		Intent:     intent,
		Confidence: types.ClampConfidence(conf),
		Rationale:  fmt.Sprintf("%s rule matched: %s", intent, strings.Join(hits, ", ")),
		Signals:    hits,
	}, true
}

func (c *Classifier) classifyOverlap(a Analysis, snap *catalog.Snapshot) (types.ClassificationResult, bool) {
	if snap == nil || snap.Len() == 0 {
		return types.ClassificationResult{}, false
	}
	keywords := a.Keywords
	if len(keywords) == 0 {
		return types.ClassificationResult{}, false
	}

	best, bestName := 0, ""
	var bestMatched []string
	for _, name := range snap.Names() {
		n, matched := snap.Overlap(name, keywords)
		if n > best {
			best, bestName, bestMatched = n, name, matched
		}
	}
	if best < c.minOverlap {
		return types.ClassificationResult{}, false
	}

	steps := min(best-1, overlapMaxSteps)
	return types.ClassificationResult{
		Intent:     types.IntentRetrieval,
		Confidence: types.ClampConfidence(overlapBase + overlapStep*float64(steps)),
		Rationale: fmt.Sprintf("%d keyword(s) overlap collection %q: %s",
			best, bestName, strings.Join(bestMatched, ", ")),
		Signals: bestMatched,
	}, true
}
