package router

import (
	"testing"
	"time"

	"github.com/af-corp/queryrouter/internal/tools"
)

func TestHealthTracker_LazyCreation(t *testing.T) {
	ht := NewHealthTracker(3, 5*time.Second)
	if !ht.Allow(tools.KindWebSearch) {
		t.Error("expected a new tool to be available")
	}
	if len(ht.States()) != 1 {
		t.Errorf("expected one breaker, got %d", len(ht.States()))
	}
}

func TestHealthTracker_RecordFailureOpensCircuit(t *testing.T) {
	ht := NewHealthTracker(2, 5*time.Second)

	ht.RecordFailure(tools.KindRetriever)
	ht.RecordFailure(tools.KindRetriever)

	if ht.Allow(tools.KindRetriever) {
		t.Error("expected retriever to be unavailable after 2 failures")
	}
}

func TestHealthTracker_IndependentTools(t *testing.T) {
	ht := NewHealthTracker(1, 5*time.Second)

	ht.RecordFailure(tools.KindWebSearch)

	if ht.Allow(tools.KindWebSearch) {
		t.Error("expected web search to be unavailable")
	}
	if !ht.Allow(tools.KindRetriever) {
		t.Error("expected retriever to be available (independent)")
	}
}

func TestHealthTracker_OnStateChange(t *testing.T) {
	ht := NewHealthTracker(2, 5*time.Second)
	var changes []CircuitState
	ht.OnStateChange(func(kind tools.Kind, s CircuitState) {
		if kind != tools.KindDirect {
			t.Errorf("unexpected kind %s", kind)
		}
		changes = append(changes, s)
	})

	ht.RecordFailure(tools.KindDirect)
	ht.RecordFailure(tools.KindDirect)
	ht.RecordFailure(tools.KindDirect)
	ht.RecordSuccess(tools.KindDirect)

	if len(changes) != 2 || changes[0] != StateOpen || changes[1] != StateClosed {
		t.Errorf("unexpected state changes %v", changes)
	}
}
