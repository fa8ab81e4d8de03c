package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQdrant_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/technical_docs/points/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["limit"])
		assert.Equal(t, true, body["with_payload"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[
			{"id":"a","score":0.91,"payload":{"text":"RAG combines retrieval with generation.","source":"rag.md"}},
			{"id":"b","score":0.20,"payload":{"text":"unrelated","document_id":"misc.md"}}
		]}`))
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, APIKey: "secret"})
	hits, err := q.Search(context.Background(), "technical_docs", []float32{0.1, 0.2}, 2, 0.35)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rag.md", hits[0].Source)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}

func TestQdrant_CollectionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Not found: Collection missing doesn't exist!"}}`))
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL})
	_, err := q.Search(context.Background(), "missing", []float32{1}, 3, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	_, err = q.Count(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrCollectionNotFound))
}

func TestQdrant_CountAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/hr_policies/points/count":
			_, _ = w.Write([]byte(`{"result":{"count":42}}`))
		case "/healthz":
			_, _ = w.Write([]byte(`healthz check passed`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL + "/"})
	n, err := q.Count(context.Background(), "hr_policies")
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)
	assert.NoError(t, q.Health(context.Background()))
}

func TestQdrant_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewQdrant(QdrantConfig{URL: srv.URL}).Search(context.Background(), "x", []float32{1}, 1, 0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCollectionNotFound))
}
