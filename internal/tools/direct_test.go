package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	reply     string
	err       error
	healthErr error
}

func (s stubGenerator) Complete(context.Context, string) (string, error) { return s.reply, s.err }
func (s stubGenerator) Health(context.Context) error                     { return s.healthErr }

func TestDirectResponder_Invoke(t *testing.T) {
	inv := NewDirectResponder(stubGenerator{reply: "Why did the chicken..."}).Invoke(context.Background(), Input{Query: "joke"})
	require.True(t, inv.OK())
	assert.Equal(t, "Why did the chicken...", inv.Output.Text)
}

func TestDirectResponder_GenerationError(t *testing.T) {
	inv := NewDirectResponder(stubGenerator{err: context.DeadlineExceeded}).Invoke(context.Background(), Input{Query: "joke"})
	assert.True(t, errors.Is(inv.Err, ErrGeneration))
}

func TestRegistry_HealthCheck(t *testing.T) {
	reg := NewRegistry(
		NewCalculator(),
		NewDirectResponder(stubGenerator{healthErr: errors.New("down")}),
	)
	assert.Equal(t, []Kind{KindCalculator, KindDirect}, reg.Kinds())

	health := reg.HealthCheck(context.Background())
	assert.NoError(t, health[KindCalculator])
	assert.Error(t, health[KindDirect])

	_, ok := reg.Get(KindWebSearch)
	assert.False(t, ok)
}
