package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/af-corp/queryrouter/internal/config"
)

type fakeModel struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				f.prompt += tc.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLangChain_Complete(t *testing.T) {
	m := &fakeModel{reply: "  Paris is the capital of France.\n"}
	g := NewLangChain(m, config.GenerationConfig{Temperature: 0.2, MaxTokens: 64})

	out, err := g.Complete(context.Background(), "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", out)
	assert.Equal(t, "capital of France?", m.prompt)
}

func TestLangChain_CompleteErrors(t *testing.T) {
	g := NewLangChain(&fakeModel{err: errors.New("connection refused")}, config.GenerationConfig{})
	_, err := g.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	g = NewLangChain(&fakeModel{reply: "   "}, config.GenerationConfig{})
	_, err = g.Complete(context.Background(), "hi")
	assert.Error(t, err)
}

func TestLangChain_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	g := NewLangChain(&fakeModel{}, config.GenerationConfig{BaseURL: srv.URL})
	assert.NoError(t, g.Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	g = NewLangChain(&fakeModel{}, config.GenerationConfig{BaseURL: down.URL})
	assert.Error(t, g.Health(context.Background()))
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, err := NewGenerator(config.GenerationConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported provider"))
}

type countingEmbedder struct {
	calls atomic.Int32
	mu    sync.Mutex
	err   error
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEmbedder_CachesByText(t *testing.T) {
	impl := &countingEmbedder{}
	e, err := NewCachedEmbedder(impl, 8)
	require.NoError(t, err)

	v1, err := e.EmbedQuery(context.Background(), "what is rag")
	require.NoError(t, err)
	v1[0] = -1 // callers must not be able to corrupt the cache

	v2, err := e.EmbedQuery(context.Background(), "what is rag")
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 1}, v2)
	assert.EqualValues(t, 1, impl.calls.Load())
	assert.Equal(t, 1, e.Len())
}

func TestCachedEmbedder_Errors(t *testing.T) {
	impl := &countingEmbedder{err: errors.New("model not loaded")}
	e, err := NewCachedEmbedder(impl, 8)
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "x")
	require.Error(t, err)
	assert.Zero(t, e.Len())
}

func TestCachedEmbedder_NoCache(t *testing.T) {
	impl := &countingEmbedder{}
	e, err := NewCachedEmbedder(impl, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.EmbedQuery(context.Background(), "same")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, impl.calls.Load())
}
