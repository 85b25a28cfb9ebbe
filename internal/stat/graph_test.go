package stat

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateGraph_NoCycle(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Define(
		Definition{ID: "strength"},
		Definition{ID: "attack", Kind: KindFormula, Formula: "strength * 2"},
	))
	require.NoError(t, e.AddBonus(Bonus{Source: "strength", Target: "health", Formula: "value"}))

	assert.NoError(t, e.ValidateGraph())
}

func TestValidateGraph_ReportsChain(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Define(
		Definition{ID: "a", Kind: KindFormula, Formula: "b + 1"},
		Definition{ID: "b", Kind: KindFormula, Formula: "c + 1"},
		Definition{ID: "c"},
	))
	require.NoError(t, e.AddBonus(Bonus{Source: "a", Target: "c", Formula: "value"}))

	err := e.ValidateGraph()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Equal(t, 1, strings.Count(err.Error(), "stat dependency cycle"), "one loop is reported once")
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestValidateGraph_SelfLoop(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Define(Definition{ID: "x", Kind: KindFormula, Formula: "x + 1"}))

	err := e.ValidateGraph()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x -> x")
}
