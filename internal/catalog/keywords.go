package catalog

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "of": {}, "for": {}, "with": {},
	"by": {}, "from": {}, "as": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "how": {}, "why": {}, "when": {},
	"where": {}, "do": {}, "does": {}, "did": {}, "can": {}, "could": {}, "would": {}, "should": {},
	"will": {}, "shall": {}, "may": {}, "might": {}, "must": {}, "i": {}, "me": {}, "my": {},
	"you": {}, "your": {}, "we": {}, "our": {}, "they": {}, "them": {}, "their": {}, "he": {},
	"she": {}, "him": {}, "her": {}, "tell": {}, "about": {}, "please": {}, "give": {}, "show": {},
	"explain": {}, "work": {}, "works": {}, "some": {}, "any": {}, "there": {}, "here": {},
	"have": {}, "has": {}, "had": {}, "not": {}, "no": {}, "yes": {}, "if": {}, "so": {},
	"than": {}, "then": {}, "into": {}, "out": {}, "up": {}, "down": {}, "over": {}, "under": {},
	"again": {}, "more": {}, "most": {}, "very": {}, "just": {}, "also": {}, "know": {}, "get": {},
	"use": {}, "used": {}, "using": {}, "like": {}, "want": {}, "need": {}, "one": {}, "s": {},
}

// Keywords lowercases text, splits it on non-alphanumeric runes, drops stop
// words and returns the distinct remaining stems in order of first appearance.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		w := stem(f)
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// stem folds the common English plural endings.
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:len(w)-1]
	}
	return w
}
