package types

import "testing"

func TestIntentPriority(t *testing.T) {
	tests := []struct {
		i        Intent
		priority int
	}{
		{IntentCalculation, 0},
		{IntentWebSearch, 1},
		{IntentRetrieval, 2},
		{IntentDirect, 3},
		{Intent("clarification"), -1},
	}

	for _, tt := range tests {
		if got := tt.i.Priority(); got != tt.priority {
			t.Errorf("%s.Priority() = %d, want %d", tt.i, got, tt.priority)
		}
	}
}

func TestIntentHasFallback(t *testing.T) {
	tests := []struct {
		i    Intent
		want bool
	}{
		{IntentRetrieval, true},
		{IntentWebSearch, true},
		{IntentCalculation, false},
		{IntentDirect, false},
	}

	for _, tt := range tests {
		if got := tt.i.HasFallback(); got != tt.want {
			t.Errorf("%s.HasFallback() = %v, want %v", tt.i, got, tt.want)
		}
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"retrieval", true},
		{"web_search", true},
		{"calculation", true},
		{"direct", true},
		{"RETRIEVAL", false},
		{"", false},
	}

	for _, tt := range tests {
		_, ok := ParseIntent(tt.input)
		if ok != tt.valid {
			t.Errorf("ParseIntent(%q) valid = %v, want %v", tt.input, ok, tt.valid)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  what   is\t15 * 25?\n"); got != "what is 15 * 25?" {
		t.Errorf("NormalizeText = %q", got)
	}
}

func TestResponseEnvelopeHelpers(t *testing.T) {
	name := "technical_docs"
	e := &ResponseEnvelope{SelectedStore: &name, Metadata: map[string]any{MetaFallbackApplied: true}}
	if e.Store() != "technical_docs" {
		t.Errorf("Store() = %q", e.Store())
	}
	if !e.FallbackApplied() {
		t.Error("expected FallbackApplied")
	}

	empty := &ResponseEnvelope{Metadata: map[string]any{}}
	if empty.Store() != "" || empty.FallbackApplied() {
		t.Error("expected zero values for empty envelope")
	}
}
