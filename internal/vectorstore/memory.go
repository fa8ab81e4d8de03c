package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process store using brute-force cosine similarity. It backs
// local development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	docs    []Document
	vectors [][]float32
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

// Upsert appends documents to a collection, creating it if needed.
func (m *Memory) Upsert(collection string, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents and vectors length mismatch: %d != %d", len(docs), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		c = &memCollection{}
		m.collections[collection] = c
	}
	for i := range docs {
		if len(c.vectors) > 0 && len(vectors[i]) != len(c.vectors[0]) {
			return fmt.Errorf("vector dimension mismatch in %s", collection)
		}
		c.docs = append(c.docs, docs[i])
		c.vectors = append(c.vectors, normalize(vectors[i]))
	}
	return nil
}

func (m *Memory) Search(_ context.Context, collection string, vector []float32, topK int, minScore float64) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if topK <= 0 {
		topK = 5
	}

	q := normalize(vector)
	hits := make([]Hit, 0, len(c.docs))
	for i, v := range c.vectors {
		if len(v) != len(q) {
			continue
		}
		score := dot(v, q)
		if score < minScore {
			continue
		}
		hits = append(hits, Hit{Document: c.docs[i], Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *Memory) Count(_ context.Context, collection string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return int64(len(c.docs)), nil
}

func (m *Memory) Health(context.Context) error { return nil }

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
