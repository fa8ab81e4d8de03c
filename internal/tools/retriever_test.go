package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/af-corp/queryrouter/internal/vectorstore"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f fixedEmbedder) EmbedQuery(context.Context, string) ([]float32, error) { return f.vec, f.err }

func seededStore(t *testing.T) *vectorstore.Memory {
	t.Helper()
	m := vectorstore.NewMemory()
	require.NoError(t, m.Upsert("technical_docs", []vectorstore.Document{
		{ID: "1", Text: "RAG pairs a retriever with a generator.", Source: "rag.md"},
		{ID: "2", Text: "Unrelated content.", Source: "misc.md"},
	}, [][]float32{{1, 0}, {0, 1}}))
	return m
}

func TestRetriever_ReturnsPassages(t *testing.T) {
	r := NewRetriever(fixedEmbedder{vec: []float32{1, 0.1}}, seededStore(t), 3, 0.5)
	inv := r.Invoke(context.Background(), Input{Query: "what is rag", Collection: "technical_docs"})
	require.True(t, inv.OK(), "unexpected error: %v", inv.Err)
	require.Len(t, inv.Output.Passages, 1)
	assert.Equal(t, "rag.md", inv.Output.Passages[0].Source)
}

func TestRetriever_EmptyResult(t *testing.T) {
	r := NewRetriever(fixedEmbedder{vec: []float32{-1, -1}}, seededStore(t), 3, 0.5)
	inv := r.Invoke(context.Background(), Input{Query: "q", Collection: "technical_docs"})
	assert.True(t, errors.Is(inv.Err, ErrEmptyResult))
}

func TestRetriever_CollectionNotFound(t *testing.T) {
	r := NewRetriever(fixedEmbedder{vec: []float32{1, 0}}, seededStore(t), 3, 0.5)

	inv := r.Invoke(context.Background(), Input{Query: "q", Collection: "ghost"})
	assert.True(t, errors.Is(inv.Err, ErrCollectionNotFound))

	inv = r.Invoke(context.Background(), Input{Query: "q"})
	assert.True(t, errors.Is(inv.Err, ErrCollectionNotFound))
}

func TestRetriever_EmbeddingFailure(t *testing.T) {
	r := NewRetriever(fixedEmbedder{err: errors.New("ollama down")}, seededStore(t), 3, 0.5)
	inv := r.Invoke(context.Background(), Input{Query: "q", Collection: "technical_docs"})
	assert.Equal(t, ErrorKindUnavailable, KindOf(inv.Err))
	assert.Equal(t, KindRetriever, inv.Tool)
}
