package catalog

import (
	"sort"
	"strings"

	"github.com/af-corp/queryrouter/internal/types"
)

// Snapshot is an immutable view of the collection catalog. A request reads
// exactly one snapshot, so collections never appear or vanish mid-dispatch.
type Snapshot struct {
	version uint64
	names   []string
	byName  map[string]types.Collection
	vocab   map[string]map[string]struct{}
}

// NewSnapshot indexes the given collections. Later duplicates of a name win.
func NewSnapshot(version uint64, collections []types.Collection) *Snapshot {
	s := &Snapshot{
		version: version,
		byName:  make(map[string]types.Collection, len(collections)),
		vocab:   make(map[string]map[string]struct{}, len(collections)),
	}
	for _, c := range collections {
		if c.Name == "" {
			continue
		}
		s.byName[c.Name] = c
	}
	for name, c := range s.byName {
		s.names = append(s.names, name)
		s.vocab[name] = vocabulary(c)
	}
	sort.Strings(s.names)
	return s
}

func vocabulary(c types.Collection) map[string]struct{} {
	parts := []string{
		strings.NewReplacer("_", " ", "-", " ").Replace(c.Name),
		c.Category,
		c.SourceType,
		strings.Join(c.Tags, " "),
	}
	words := Keywords(strings.Join(parts, " "))
	v := make(map[string]struct{}, len(words))
	for _, w := range words {
		v[w] = struct{}{}
	}
	return v
}

// Version increases every time the catalog content is swapped.
func (s *Snapshot) Version() uint64 { return s.version }

func (s *Snapshot) Len() int { return len(s.names) }

// Names returns collection names in lexicographic order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Snapshot) Get(name string) (types.Collection, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Collections returns all collections ordered by name.
func (s *Snapshot) Collections() []types.Collection {
	out := make([]types.Collection, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byName[n])
	}
	return out
}

// Overlap counts how many of the given keywords appear in the collection's
// metadata vocabulary and returns the matched words.
func (s *Snapshot) Overlap(name string, keywords []string) (int, []string) {
	v, ok := s.vocab[name]
	if !ok {
		return 0, nil
	}
	var matched []string
	for _, k := range keywords {
		if _, hit := v[k]; hit {
			matched = append(matched, k)
		}
	}
	return len(matched), matched
}
