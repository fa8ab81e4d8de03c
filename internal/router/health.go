package router

import (
	"context"
	"sync"
	"time"

	"github.com/af-corp/queryrouter/internal/tools"
)

// HealthTracker owns one circuit breaker per tool kind.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[tools.Kind]*CircuitBreaker
	onChange func(kind tools.Kind, state CircuitState)

	failureThreshold int
	recoveryInterval time.Duration
}

func NewHealthTracker(failureThreshold int, recoveryInterval time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:         make(map[tools.Kind]*CircuitBreaker),
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
	}
}

// OnStateChange registers a callback fired after a recorded outcome changes a
// breaker's state.
func (ht *HealthTracker) OnStateChange(fn func(kind tools.Kind, state CircuitState)) {
	ht.mu.Lock()
	ht.onChange = fn
	ht.mu.Unlock()
}

// GetBreaker returns (or lazily creates) the breaker for kind.
func (ht *HealthTracker) GetBreaker(kind tools.Kind) *CircuitBreaker {
	ht.mu.RLock()
	cb, ok := ht.breakers[kind]
	ht.mu.RUnlock()
	if ok {
		return cb
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	if cb, ok := ht.breakers[kind]; ok {
		return cb
	}
	cb = NewCircuitBreaker(ht.failureThreshold, ht.recoveryInterval)
	ht.breakers[kind] = cb
	return cb
}

// Allow asks the breaker for a call slot.
func (ht *HealthTracker) Allow(kind tools.Kind) bool {
	return ht.GetBreaker(kind).Allow()
}

// State reports the breaker state without taking a trial slot.
func (ht *HealthTracker) State(kind tools.Kind) CircuitState {
	return ht.GetBreaker(kind).State()
}

func (ht *HealthTracker) RecordSuccess(kind tools.Kind) {
	ht.record(kind, (*CircuitBreaker).RecordSuccess)
}

func (ht *HealthTracker) RecordFailure(kind tools.Kind) {
	ht.record(kind, (*CircuitBreaker).RecordFailure)
}

func (ht *HealthTracker) Release(kind tools.Kind) {
	ht.GetBreaker(kind).Release()
}

// States snapshots every known breaker.
func (ht *HealthTracker) States() map[tools.Kind]CircuitState {
	ht.mu.RLock()
	defer ht.mu.RUnlock()
	out := make(map[tools.Kind]CircuitState, len(ht.breakers))
	for k, cb := range ht.breakers {
		out[k] = cb.State()
	}
	return out
}

func (ht *HealthTracker) record(kind tools.Kind, fn func(*CircuitBreaker)) {
	cb := ht.GetBreaker(kind)
	before := cb.State()
	fn(cb)
	after := cb.State()

	ht.mu.RLock()
	onChange := ht.onChange
	ht.mu.RUnlock()
	if onChange != nil && before != after {
		onChange(kind, after)
	}
}

// ToolHealth is the per-tool entry of the health report.
type ToolHealth struct {
	Healthy bool   `json:"healthy"`
	Circuit string `json:"circuit"`
	Error   string `json:"error,omitempty"`
}

// Report checks every registered tool and joins the result with its breaker
// state. A tool with an open breaker is reported unhealthy even if the check
// passes.
func (ht *HealthTracker) Report(ctx context.Context, registry *tools.Registry) map[tools.Kind]ToolHealth {
	checks := registry.HealthCheck(ctx)
	out := make(map[tools.Kind]ToolHealth, len(checks))
	for kind, err := range checks {
		state := ht.State(kind)
		h := ToolHealth{Healthy: err == nil && state != StateOpen, Circuit: state.String()}
		if err != nil {
			h.Error = err.Error()
		}
		out[kind] = h
	}
	return out
}
