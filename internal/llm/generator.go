package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/af-corp/queryrouter/internal/config"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Health(ctx context.Context) error
}

// LangChain adapts a langchaingo model to Generator.
type LangChain struct {
	model   llms.Model
	opts    []llms.CallOption
	baseURL string
	ping    *resty.Client
}

// NewLangChain wraps an existing model. baseURL is checked by Health and may
// be empty.
func NewLangChain(model llms.Model, cfg config.GenerationConfig) *LangChain {
	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return &LangChain{
		model:   model,
		opts:    opts,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ping:    resty.New(),
	}
}

// NewGenerator builds the configured provider.
func NewGenerator(cfg config.GenerationConfig) (*LangChain, error) {
	model, err := newModel(cfg.Provider, cfg.BaseURL, cfg.Model, cfg.APIKey, "")
	if err != nil {
		return nil, fmt.Errorf("generation provider: %w", err)
	}
	return NewLangChain(model, cfg), nil
}

func (g *LangChain) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt, g.opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("generate: empty completion")
	}
	return out, nil
}

// Health checks that the provider endpoint answers. It does not spend a
// completion.
func (g *LangChain) Health(ctx context.Context) error {
	if g.baseURL == "" {
		return nil
	}
	resp, err := g.ping.R().SetContext(ctx).Get(g.baseURL)
	if err != nil {
		return fmt.Errorf("generation backend: %w", err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("generation backend: %s", resp.Status())
	}
	return nil
}

// newModel returns a langchaingo client for provider. The concrete clients
// also implement embeddings.EmbedderClient.
func newModel(provider, baseURL, model, apiKey, embeddingModel string) (clientModel, error) {
	switch provider {
	case "", "ollama":
		opts := []ollama.Option{ollama.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, ollama.WithServerURL(baseURL))
		}
		m, err := ollama.New(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "openai":
		opts := []openai.Option{openai.WithModel(model)}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		if apiKey != "" {
			opts = append(opts, openai.WithToken(apiKey))
		}
		if embeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(embeddingModel))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

type clientModel interface {
	llms.Model
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
