package skill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/stat"
)

func TestBuffManager_Stacking(t *testing.T) {
	m := NewBuffManager(nil, 0)

	require.True(t, m.Apply("p1", Buff{Group: "might", Level: 2, Stat: "attack", Value: 10, Ticks: 5}))

	// lower level rejected
	assert.False(t, m.Apply("p1", Buff{Group: "might", Level: 1, Stat: "attack", Value: 50, Ticks: 50}))
	assert.Equal(t, 10.0, m.StatModifier("p1", "attack"))

	// same level refreshes duration and value
	assert.True(t, m.Apply("p1", Buff{Group: "might", Level: 2, Stat: "attack", Value: 12, Ticks: 8}))
	active := m.Active("p1")
	require.Len(t, active, 1)
	assert.Equal(t, 8, active[0].Ticks)
	assert.Equal(t, 12.0, m.StatModifier("p1", "attack"))

	// higher level replaces
	assert.True(t, m.Apply("p1", Buff{Group: "might", Level: 3, Stat: "attack", Value: 30, Ticks: 4}))
	assert.Equal(t, 30.0, m.StatModifier("p1", "attack"))
	assert.Equal(t, 1, m.Count("p1"))
}

func TestBuffManager_LimitDropsOldest(t *testing.T) {
	m := NewBuffManager(nil, 2)

	m.Apply("p1", Buff{Group: "a", Stat: "x", Value: 1, Ticks: 10})
	m.Apply("p1", Buff{Group: "b", Stat: "x", Value: 2, Ticks: 10})
	m.Apply("p1", Buff{Group: "c", Stat: "x", Value: 4, Ticks: 10})

	assert.Equal(t, 2, m.Count("p1"))
	assert.Equal(t, 6.0, m.StatModifier("p1", "x"))
}

func TestBuffManager_TickExpiresAndInvalidates(t *testing.T) {
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)
	m := NewBuffManager(engine, 0)
	s := newTestSubject("p1", map[string]float64{"defense": 10})

	m.Apply("p1", Buff{Group: "shield", Stat: "defense", Value: 5, Ticks: 2})
	require.Equal(t, 15.0, engine.Resolve(s, "defense"))

	m.Tick()
	assert.Equal(t, 15.0, engine.Resolve(s, "defense"))
	assert.True(t, engine.Cached("p1", "defense"))

	m.Tick()
	assert.Equal(t, 0, m.Count("p1"))
	assert.False(t, engine.Cached("p1", "defense"), "expiry invalidates the subject")
	assert.Equal(t, 10.0, engine.Resolve(s, "defense"))
}

func TestBuffManager_RefreshInvalidatesOnNewValue(t *testing.T) {
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)
	m := NewBuffManager(engine, 0)
	s := newTestSubject("p1", map[string]float64{"defense": 10})

	m.Apply("p1", Buff{Group: "shield", Level: 1, Stat: "defense", Value: 5, Ticks: 3})
	require.Equal(t, 15.0, engine.Resolve(s, "defense"))

	m.Apply("p1", Buff{Group: "shield", Level: 1, Stat: "defense", Value: 5, Ticks: 6})
	assert.True(t, engine.Cached("p1", "defense"), "same value keeps the cache")

	m.Apply("p1", Buff{Group: "shield", Level: 1, Stat: "defense", Value: 8, Ticks: 6})
	assert.False(t, engine.Cached("p1", "defense"))
	assert.Equal(t, 18.0, engine.Resolve(s, "defense"))
}

func TestBuffManager_RemoveAndClear(t *testing.T) {
	m := NewBuffManager(nil, 0)
	m.Apply("p1", Buff{Group: "a", Stat: "x", Value: 1, Ticks: 10})
	m.Apply("p1", Buff{Group: "b", Stat: "x", Value: 2, Ticks: 10})

	assert.True(t, m.Remove("p1", "a"))
	assert.False(t, m.Remove("p1", "a"))
	assert.False(t, m.Remove("nobody", "a"))
	assert.Equal(t, 2.0, m.StatModifier("p1", "x"))

	m.Clear("p1")
	assert.Equal(t, 0, m.Count("p1"))
}

func TestBuffManager_RejectsExpired(t *testing.T) {
	m := NewBuffManager(nil, 0)
	assert.False(t, m.Apply("p1", Buff{Group: "a", Stat: "x", Value: 1}))
}
