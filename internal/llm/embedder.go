package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/sync/singleflight"

	"github.com/af-corp/queryrouter/internal/config"
)

// Embedder turns query text into a vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder memoises query embeddings in an LRU and collapses concurrent
// requests for the same text.
type CachedEmbedder struct {
	impl  embeddings.Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

// NewEmbedder builds the configured provider with an LRU of cfg.CacheSize entries.
func NewEmbedder(cfg config.EmbeddingConfig) (*CachedEmbedder, error) {
	client, err := newModel(cfg.Provider, cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	return NewCachedEmbedder(impl, cfg.CacheSize)
}

func NewCachedEmbedder(impl embeddings.Embedder, size int) (*CachedEmbedder, error) {
	e := &CachedEmbedder{impl: impl}
	if size > 0 {
		cache, err := lru.New[string, []float32](size)
		if err != nil {
			return nil, fmt.Errorf("init embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return cloneVector(v), nil
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		vec, err := e.impl.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("empty embedding")
		}
		if e.cache != nil {
			e.cache.Add(key, cloneVector(vec))
		}
		return vec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return cloneVector(v.([]float32)), nil
}

// Len reports the number of cached vectors.
func (e *CachedEmbedder) Len() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
