package tools

import (
	"context"
	"time"
)

// Kind names a tool adapter.
type Kind string

const (
	KindCalculator Kind = "calculator"
	KindWebSearch  Kind = "web_search"
	KindRetriever  Kind = "vector_retriever"
	KindDirect     Kind = "direct_responder"
)

func (k Kind) String() string { return string(k) }

// Input is the intent-specific argument of an invocation.
type Input struct {
	Query      string
	Collection string // vector retriever only
}

// Passage is one piece of retrieved context: a document chunk or a web snippet.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Title  string  `json:"title,omitempty"`
	URL    string  `json:"url,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// Output is a successful tool result.
type Output struct {
	Text       string    // calculator result or direct completion
	Expression string    // calculator only: the expression that was evaluated
	Passages   []Passage // retriever and web search
}

// Invocation records a single dispatch attempt. Exactly one of Output and Err is set.
type Invocation struct {
	Tool     Kind
	Input    Input
	Output   *Output
	Err      error
	Latency  time.Duration
	Attempts int
}

func (i Invocation) OK() bool { return i.Err == nil && i.Output != nil }

// Tool is the capability shared by all adapters.
type Tool interface {
	Kind() Kind
	Invoke(ctx context.Context, in Input) Invocation
	HealthCheck(ctx context.Context) error
}

// run times fn and packages its result as an Invocation.
func run(ctx context.Context, kind Kind, in Input, fn func(ctx context.Context) (*Output, int, error)) Invocation {
	start := time.Now()
	out, attempts, err := fn(ctx)
	if attempts == 0 {
		attempts = 1
	}
	inv := Invocation{
		Tool:     kind,
		Input:    in,
		Latency:  time.Since(start),
		Attempts: attempts,
	}
	if err != nil {
		inv.Err = asToolError(kind, err)
		return inv
	}
	inv.Output = out
	return inv
}
