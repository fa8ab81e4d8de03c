package classifier

import (
	"regexp"
	"strings"

	"github.com/af-corp/queryrouter/internal/catalog"
)

var (
	acronym     = regexp.MustCompile(`\b[A-Z]{2,}[0-9]*\b`)
	capitalised = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*\b`)

	// dateShape covers ISO dates, slashed dates and year ranges.
	dateShape = regexp.MustCompile(`\b(\d{4}-\d{1,2}-\d{1,2}|\d{4}/\d{1,2}/\d{1,2}|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{4})\b`)
)

// sentenceWords are capitalised only because they open a question.
var sentenceWords = map[string]struct{}{
	"what": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {}, "which": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "can": {}, "could": {}, "do": {}, "does": {},
	"did": {}, "will": {}, "tell": {}, "please": {}, "give": {}, "show": {}, "explain": {},
	"the": {}, "a": {}, "an": {}, "i": {}, "in": {}, "on": {}, "my": {}, "hi": {}, "hello": {},
}

// Analysis holds the surface features of a query used by the rule cascade.
type Analysis struct {
	Keywords []string
	Entities []string
	Masked   string // text with date shapes replaced, for arithmetic matching
}

// Analyze extracts keywords and named entities.
// Entities are acronyms (RAG, NASA) and capitalised words that are not just
// opening the sentence.
func Analyze(text string) Analysis {
	a := Analysis{
		Keywords: catalog.Keywords(text),
		Masked:   dateShape.ReplaceAllString(text, " date "),
	}

	seen := make(map[string]struct{})
	add := func(e string) {
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		a.Entities = append(a.Entities, e)
	}
	for _, m := range acronym.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range capitalised.FindAllString(text, -1) {
		if _, ok := sentenceWords[strings.ToLower(m)]; ok {
			continue
		}
		add(m)
	}
	return a
}

// EntitySignals renders entities in the form used by ClassificationResult.Signals.
func (a Analysis) EntitySignals() []string {
	out := make([]string, 0, len(a.Entities))
	for _, e := range a.Entities {
		out = append(out, "entity:"+e)
	}
	return out
}
