package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractExpression(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is 15*25?", "15*25"},
		{"what is 12 divided by 4", "12 / 4"},
		{"compute (2 + 3) × 4 please", "(2 + 3) * 4"},
		{"calculate the sum of 3 and 9", "3 + 9"},
		{"7 minus -2", "7 - -2"},
		{"what is 1,250,000 / 5", "1250000 / 5"},
		{"Can you tell me a funny joke?", ""},
	}
	for _, tt := range tests {
		got, err := ExtractExpression(tt.in)
		if err != nil {
			t.Errorf("ExtractExpression(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractExpression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractExpression_Rejects(t *testing.T) {
	for _, in := range []string{
		"Calculate 3 apples + 4 oranges",
		"Calculate the sum of 1, 2 and 3",
		"Compute 12.5% of 80",
		"what is 2^10",
		"what is 3 x 4",
		"what is 3+4 and 5+6",
	} {
		got, err := ExtractExpression(in)
		if !errors.Is(err, ErrParse) {
			t.Errorf("ExtractExpression(%q) = %q, %v; want parse_error", in, got, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"15*25", "375"},
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"-4 + 10", "6"},
		{"--4", "4"},
		{"10 / 4", "2.5"},
		{"0.1 + 0.2", "0.3"},
		{"1 / 3", "0.3333333333333333"},
		{"2 - 3 - 4", "-5"},
		{"100 / 10 / 5", "2"},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr)
		if err != nil {
			t.Errorf("Evaluate(%q) error: %v", tt.expr, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("Evaluate(%q) = %s, want %s", tt.expr, got.String(), tt.want)
		}
	}
}

func TestEvaluate_ParseErrors(t *testing.T) {
	for _, expr := range []string{"", "1 +", "(1 + 2", "1 2", "3 * * 4", ".", strings.Repeat("1+", 200) + "1", strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100)} {
		_, err := Evaluate(expr)
		if !errors.Is(err, ErrParse) {
			t.Errorf("Evaluate(%q) error = %v, want parse_error", expr, err)
		}
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := Evaluate("5 / (2 - 2)")
	if !errors.Is(err, ErrDomain) {
		t.Fatalf("expected domain_error, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) || te.Message() != "division by zero" {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestCalculator_Invoke(t *testing.T) {
	c := NewCalculator()
	inv := c.Invoke(context.Background(), Input{Query: "What is 15*25?"})
	if !inv.OK() {
		t.Fatalf("unexpected error: %v", inv.Err)
	}
	if inv.Output.Text != "375" {
		t.Errorf("result = %q, want 375", inv.Output.Text)
	}
	if inv.Output.Expression != "15*25" {
		t.Errorf("expression = %q", inv.Output.Expression)
	}
	if inv.Tool != KindCalculator || inv.Attempts != 1 {
		t.Errorf("unexpected invocation %+v", inv)
	}
}

func TestCalculator_InvokeFailure(t *testing.T) {
	inv := NewCalculator().Invoke(context.Background(), Input{Query: "what is 1/0"})
	if inv.OK() {
		t.Fatal("expected failure")
	}
	if KindOf(inv.Err) != ErrorKindDomain {
		t.Errorf("kind = %s, want domain_error", KindOf(inv.Err))
	}
}

func TestCalculator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv := NewCalculator().Invoke(ctx, Input{Query: "1+1"})
	if inv.OK() {
		t.Fatal("expected failure on cancelled context")
	}
}
