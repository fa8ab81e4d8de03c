package vectorstore

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned when the named collection does not exist
// in the backing store.
var ErrCollectionNotFound = errors.New("collection not found")

// Document is a stored chunk with its source attribution.
type Document struct {
	ID     string
	Text   string
	Source string
}

// Hit is one similarity search result.
type Hit struct {
	Document
	Score float64
}

// Store is the read side of a multi-collection vector database.
type Store interface {
	// Search returns up to topK hits ordered by descending score. Hits below
	// minScore are dropped.
	Search(ctx context.Context, collection string, vector []float32, topK int, minScore float64) ([]Hit, error)
	Count(ctx context.Context, collection string) (int64, error)
	Health(ctx context.Context) error
}
