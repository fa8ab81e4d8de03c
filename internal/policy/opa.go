package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/af-corp/queryrouter/internal/config"
)

const decisionQuery = "[data.queryrouter.policy.allow, data.queryrouter.policy.reason]"

// Input is the document sent to OPA for every tool dispatch.
type Input struct {
	Caller  Caller  `json:"caller"`
	Request Request `json:"request"`
	Time    Time    `json:"time"`
}

type Caller struct {
	ID           string   `json:"id"`
	Owner        string   `json:"owner"`
	AllowedTools []string `json:"allowed_tools"`
}

type Request struct {
	Tool       string  `json:"tool"`
	Intent     string  `json:"intent"`
	Collection string  `json:"collection,omitempty"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

type Time struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Decision is the evaluated outcome.
type Decision struct {
	Allowed bool
	Reason  string
}

// Evaluator decides whether a tool may be dispatched for a request.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
	now      func() time.Time
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg, now: time.Now}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles the Rego modules found under the configured bundle path.
// It is safe to call again on config reload.
func (e *Evaluator) Load() error {
	cfg := e.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(modules); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from module sources.
func (e *Evaluator) LoadFromModules(modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(decisionQuery)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Evaluate runs the policy against input. With no policies loaded it fails
// closed.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) (Decision, error) {
	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		return Decision{Reason: "no policies loaded"}, nil
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return Decision{Reason: "policy evaluation error"}, fmt.Errorf("evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Reason: "no policy result"}, nil
	}

	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return Decision{Reason: "unexpected policy result format"}, nil
	}
	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return Decision{Allowed: allowed, Reason: reason}, nil
}

// AllowTool is the router's entry point. A disabled evaluator allows
// everything; an evaluation error denies.
func (e *Evaluator) AllowTool(ctx context.Context, caller Caller, req Request) Decision {
	if e == nil || !e.Enabled() {
		return Decision{Allowed: true}
	}
	now := e.now().UTC()
	d, err := e.Evaluate(ctx, Input{
		Caller:  caller,
		Request: req,
		Time:    Time{Hour: now.Hour(), Day: now.Weekday().String()},
	})
	if err != nil {
		slog.Error("policy evaluation failed", "tool", req.Tool, "error", err)
		return Decision{Reason: "policy evaluation failed"}
	}
	return d
}
