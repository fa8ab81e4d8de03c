package tools

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry holds the tool adapters by kind.
type Registry struct {
	mu    sync.RWMutex
	tools map[Kind]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[Kind]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Kind()] = t
}

func (r *Registry) Get(kind Kind) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[kind]
	return t, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.tools))
	for k := range r.tools {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HealthCheck checks every tool concurrently. A nil entry means healthy.
func (r *Registry) HealthCheck(ctx context.Context) map[Kind]error {
	kinds := r.Kinds()
	results := make([]error, len(kinds))

	var g errgroup.Group
	for i, k := range kinds {
		t, _ := r.Get(k)
		g.Go(func() error {
			results[i] = t.HealthCheck(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[Kind]error, len(kinds))
	for i, k := range kinds {
		out[k] = results[i]
	}
	return out
}
