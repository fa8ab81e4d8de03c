package tools

import (
	"context"
	"errors"

	"github.com/af-corp/queryrouter/internal/llm"
	"github.com/af-corp/queryrouter/internal/vectorstore"
)

// Retriever embeds the query and searches one named collection.
type Retriever struct {
	embedder llm.Embedder
	store    vectorstore.Store
	topK     int
	minScore float64
}

func NewRetriever(embedder llm.Embedder, store vectorstore.Store, topK int, minScore float64) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, minScore: minScore}
}

func (r *Retriever) Kind() Kind { return KindRetriever }

func (r *Retriever) HealthCheck(ctx context.Context) error { return r.store.Health(ctx) }

func (r *Retriever) Invoke(ctx context.Context, in Input) Invocation {
	return run(ctx, KindRetriever, in, func(ctx context.Context) (*Output, int, error) {
		if in.Collection == "" {
			return nil, 1, Errorf(KindRetriever, ErrorKindCollectionNotFound, "no collection given")
		}
		vec, err := r.embedder.EmbedQuery(ctx, in.Query)
		if err != nil {
			return nil, 1, err
		}
		hits, err := r.store.Search(ctx, in.Collection, vec, r.topK, r.minScore)
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, 1, NewError(KindRetriever, ErrorKindCollectionNotFound, err)
		}
		if err != nil {
			return nil, 1, err
		}
		if len(hits) == 0 {
			return nil, 1, Errorf(KindRetriever, ErrorKindEmptyResult, "no passages in %s scored at least %.2f", in.Collection, r.minScore)
		}

		passages := make([]Passage, 0, len(hits))
		for _, h := range hits {
			passages = append(passages, Passage{Text: h.Text, Source: h.Source, Score: h.Score})
		}
		return &Output{Passages: passages}, 1, nil
	})
}
