package tools

import (
	"context"

	"github.com/af-corp/queryrouter/internal/llm"
)

// DirectResponder answers from the language model alone.
type DirectResponder struct {
	gen llm.Generator
}

func NewDirectResponder(gen llm.Generator) *DirectResponder {
	return &DirectResponder{gen: gen}
}

func (d *DirectResponder) Kind() Kind { return KindDirect }

func (d *DirectResponder) HealthCheck(ctx context.Context) error { return d.gen.Health(ctx) }

func (d *DirectResponder) Invoke(ctx context.Context, in Input) Invocation {
	return run(ctx, KindDirect, in, func(ctx context.Context) (*Output, int, error) {
		text, err := d.gen.Complete(ctx, in.Query)
		if err != nil {
			return nil, 1, NewError(KindDirect, ErrorKindGeneration, err)
		}
		return &Output{Text: text}, 1, nil
	})
}
