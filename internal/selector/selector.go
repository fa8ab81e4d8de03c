package selector

import (
	"github.com/af-corp/queryrouter/internal/catalog"
)

// Selection is the collection chosen for a retrieval query.
type Selection struct {
	Collection string
	Score      int
	Matched    []string
}

// Selector picks the collection whose metadata vocabulary best overlaps the
// query keywords.
type Selector struct {
	minOverlap int
}

func New(minOverlap int) *Selector {
	if minOverlap < 1 {
		minOverlap = 1
	}
	return &Selector{minOverlap: minOverlap}
}

// Select returns the highest-scoring collection at or above the minimum
// overlap. Ties go to the lexicographically smallest name. The boolean is
// false when nothing qualifies (NoMatch).
func (s *Selector) Select(query string, snap *catalog.Snapshot) (Selection, bool) {
	if snap == nil || snap.Len() == 0 {
		return Selection{}, false
	}
	keywords := catalog.Keywords(query)
	if len(keywords) == 0 {
		return Selection{}, false
	}

	var best Selection
	// Names are sorted, so keeping the first strictly greater score yields
	// the lexicographic tie-break.
	for _, name := range snap.Names() {
		n, matched := snap.Overlap(name, keywords)
		if n > best.Score {
			best = Selection{Collection: name, Score: n, Matched: matched}
		}
	}
	if best.Score < s.minOverlap {
		return Selection{}, false
	}
	return best, true
}
