package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/af-corp/queryrouter/internal/llm"
	"github.com/af-corp/queryrouter/internal/tools"
	"github.com/af-corp/queryrouter/internal/types"
)

const groundedTemplate = `Use the following context to help answer the question.

Context:
{{.context}}

Question: {{.question}}

Please provide a response that:
1. Answers the question using only the context
2. Cites the sources you used by their number, e.g. [1]
3. Says "I don't know" if the context doesn't contain the answer
`

// Source is the attribution kept in envelope metadata for grounded answers.
type Source struct {
	Index int     `json:"index"`
	Title string  `json:"title,omitempty"`
	URL   string  `json:"url,omitempty"`
	Ref   string  `json:"source"`
	Score float64 `json:"score,omitempty"`
}

// Synthesis is the user-facing text plus how it was produced.
type Synthesis struct {
	Text    string
	Path    string
	Sources []Source
}

// Synthesizer turns a successful tool invocation into the final answer.
type Synthesizer struct {
	gen      llm.Generator
	grounded prompts.PromptTemplate
}

func New(gen llm.Generator) *Synthesizer {
	return &Synthesizer{
		gen:      gen,
		grounded: prompts.NewPromptTemplate(groundedTemplate, []string{"context", "question"}),
	}
}

// Synthesize builds the answer for intent from inv. fallback marks a DIRECT
// answer reached by downgrading another intent. Errors are always
// *tools.Error of kind generation_error.
func (s *Synthesizer) Synthesize(ctx context.Context, q types.Query, intent types.Intent, inv tools.Invocation, fallback bool) (Synthesis, error) {
	if !inv.OK() {
		return Synthesis{}, tools.Errorf(tools.KindDirect, tools.ErrorKindGeneration, "no tool output to synthesize")
	}

	switch intent {
	case types.IntentCalculation:
		return Synthesis{Text: FormatCalculation(inv.Output), Path: types.PathCalculation}, nil

	case types.IntentRetrieval, types.IntentWebSearch:
		path := types.PathRetrievalGrounded
		if intent == types.IntentWebSearch {
			path = types.PathWebSearchGrounded
		}
		text, err := s.generateGrounded(ctx, q.Text, inv.Output.Passages)
		if err != nil {
			return Synthesis{}, err
		}
		return Synthesis{Text: text, Path: path, Sources: sources(inv.Output.Passages)}, nil

	default:
		path := types.PathDirect
		if fallback {
			path = types.PathDirectFallback
		}
		return Synthesis{Text: strings.TrimSpace(inv.Output.Text), Path: path}, nil
	}
}

func (s *Synthesizer) generateGrounded(ctx context.Context, question string, passages []tools.Passage) (string, error) {
	prompt, err := s.GroundedPrompt(question, passages)
	if err != nil {
		return "", tools.NewError(tools.KindDirect, tools.ErrorKindGeneration, err)
	}
	text, err := s.gen.Complete(ctx, prompt)
	if err != nil {
		return "", tools.NewError(tools.KindDirect, tools.ErrorKindGeneration, err)
	}
	return strings.TrimSpace(text), nil
}

// GroundedPrompt renders the context-restricted prompt with numbered passages.
func (s *Synthesizer) GroundedPrompt(question string, passages []tools.Passage) (string, error) {
	return s.grounded.Format(map[string]any{
		"context":  FormatContext(passages),
		"question": question,
	})
}

// FormatContext numbers passages from 1 and keeps their attribution next to
// the text.
func FormatContext(passages []tools.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d]", i+1)
		if p.Title != "" {
			fmt.Fprintf(&b, " %s", p.Title)
		}
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteByte('\n')
		if ref := sourceRef(p); ref != "" {
			fmt.Fprintf(&b, "Source: %s\n", ref)
		}
		b.WriteString("---\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatCalculation renders a calculator result without involving the model.
func FormatCalculation(out *tools.Output) string {
	expr := strings.Join(strings.Fields(out.Expression), " ")
	if expr == "" {
		return "The result is " + out.Text + "."
	}
	return fmt.Sprintf("%s = %s", expr, out.Text)
}

func sources(passages []tools.Passage) []Source {
	out := make([]Source, 0, len(passages))
	for i, p := range passages {
		out = append(out, Source{
			Index: i + 1,
			Title: p.Title,
			URL:   p.URL,
			Ref:   sourceRef(p),
			Score: p.Score,
		})
	}
	return out
}

func sourceRef(p tools.Passage) string {
	if p.URL != "" {
		return p.URL
	}
	return p.Source
}
