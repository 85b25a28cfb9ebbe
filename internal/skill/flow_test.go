package skill

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/targeting"
)

func TestInterpreter_DelayedSecondStep(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	a := &Ability{ID: "two-step", Steps: []Step{
		{Delay: 5},
		{Mechanics: []Mechanic{mech}},
	}}

	id, err := f.interp.Start(a, f.context(newTestSubject("p1", nil)))
	require.NoError(t, err)

	for tick := 0; tick <= 6; tick++ {
		f.interp.Tick()
		switch {
		case tick <= 4:
			assert.Empty(t, mech.fired, "tick %d", tick)
			assert.True(t, ecs.Has[*Instance](f.world, id), "tick %d", tick)
		case tick == 5:
			assert.Len(t, mech.fired, 1)
		case tick == 6:
			assert.Len(t, mech.fired, 1, "fires exactly once")
			assert.False(t, ecs.Has[*Instance](f.world, id))
			assert.False(t, f.world.Alive(id))
		}
	}
	assert.Equal(t, uint64(1), f.interp.Stats().Completed)
}

func TestInterpreter_ZeroStepCompletesOnFirstTick(t *testing.T) {
	f := newFixture(t)
	id, err := f.interp.Start(&Ability{ID: "empty"}, f.context(nil))
	require.NoError(t, err)
	require.Equal(t, 1, f.interp.Running())

	f.interp.Tick()

	assert.Equal(t, 0, f.interp.Running())
	assert.False(t, f.world.Alive(id))
}

func TestInterpreter_StepsWithoutDelayRunInOneTick(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	a := &Ability{ID: "burst", Steps: []Step{
		{Mechanics: []Mechanic{mech}},
		{Mechanics: []Mechanic{mech}},
		{Mechanics: []Mechanic{mech}},
	}}
	_, err := f.interp.Start(a, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick()

	assert.Equal(t, []uint64{1, 1, 1}, mech.fired)
	assert.Equal(t, 0, f.interp.Running())
}

func TestInterpreter_FailedConditionSkipsStepAndDelay(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	never := ConditionFunc(func(*Runtime, *Context) (bool, error) { return false, nil })
	a := &Ability{ID: "gated", Steps: []Step{
		{Conditions: []Condition{never}, Mechanics: []Mechanic{mech}, Delay: 10},
		{Mechanics: []Mechanic{mech}},
	}}
	_, err := f.interp.Start(a, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick()

	assert.Len(t, mech.fired, 1, "only the second step runs")
	assert.Equal(t, 0, f.interp.Running())
}

func TestInterpreter_FaultIsolation(t *testing.T) {
	f := newFixture(t)
	after := &counter{interp: f.interp}
	sameStep := &counter{interp: f.interp}
	sibling := &counter{interp: f.interp}

	boom := MechanicFunc(func(*Runtime, *Context) error { panic("boom") })
	failing := MechanicFunc(func(*Runtime, *Context) error { return errors.New("nope") })
	panicky := ConditionFunc(func(*Runtime, *Context) (bool, error) { panic("bad condition") })

	faulty := &Ability{ID: "faulty", Steps: []Step{
		{Mechanics: []Mechanic{boom, sameStep}, Delay: 1},
		{Conditions: []Condition{panicky}, Mechanics: []Mechanic{sameStep}},
		{Mechanics: []Mechanic{failing, sameStep}},
		{Mechanics: []Mechanic{after}},
	}}
	healthy := &Ability{ID: "healthy", Steps: []Step{{Mechanics: []Mechanic{sibling}}}}

	_, err := f.interp.Start(faulty, f.context(nil))
	require.NoError(t, err)
	_, err = f.interp.Start(healthy, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick()
	assert.Empty(t, sameStep.fired, "a fault aborts the remaining mechanics of its step")
	assert.Len(t, sibling.fired, 1, "siblings are unaffected")
	assert.Equal(t, 1, f.interp.Running(), "delay of the faulted step still applies")

	f.interp.Tick()
	assert.Empty(t, sameStep.fired)
	assert.Len(t, after.fired, 1, "instance continues past faulted steps")
	assert.Equal(t, 0, f.interp.Running())
	assert.Equal(t, uint64(3), f.interp.Stats().Faults)
}

func TestInterpreter_RetargetReplacesTargets(t *testing.T) {
	f := newFixture(t)
	f.rt.World = &stubWorld{targets: []targeting.Target{target("near", 2), target("far", 20)}}

	var seen []string
	record := MechanicFunc(func(_ *Runtime, c *Context) error {
		seen = c.TargetIDs()
		return nil
	})
	a := &Ability{ID: "nova", Steps: []Step{{
		Targeter:  &targeting.Targeter{Shape: targeting.Radius{Radius: 5}},
		Mechanics: []Mechanic{record},
	}}}

	_, err := f.interp.Start(a, f.context(nil, target("stale", 0)))
	require.NoError(t, err)
	f.interp.Tick()

	assert.Equal(t, []string{"near"}, seen)
}

func TestInterpreter_AsyncStepForks(t *testing.T) {
	f := newFixture(t)
	body := &counter{interp: f.interp}
	next := &counter{interp: f.interp}
	a := &Ability{ID: "fork", Steps: []Step{
		{Async: true, Delay: 3, Mechanics: []Mechanic{body}},
		{Mechanics: []Mechanic{next}},
	}}

	_, err := f.interp.Start(a, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick() // tick 1: parent runs step 2 immediately and completes; child parked
	assert.Len(t, next.fired, 1)
	assert.Empty(t, body.fired)
	assert.Equal(t, 1, f.interp.Running())

	f.ticks(2)
	assert.Empty(t, body.fired)

	f.interp.Tick() // 3 ticks after the fork
	assert.Equal(t, []uint64{4}, body.fired)
	assert.Equal(t, 0, f.interp.Running())
}

func TestInterpreter_AsyncForkHasOwnContext(t *testing.T) {
	f := newFixture(t)
	var forkCtx, parentCtx *Context
	a := &Ability{ID: "fork-ctx", Steps: []Step{
		{Async: true, Mechanics: []Mechanic{MechanicFunc(func(_ *Runtime, c *Context) error {
			forkCtx = c
			c.SetVar("x", 1.0)
			return nil
		})}},
		{Delay: 3, Mechanics: []Mechanic{MechanicFunc(func(_ *Runtime, c *Context) error {
			parentCtx = c
			return nil
		})}},
	}}
	_, err := f.interp.Start(a, f.context(newTestSubject("p1", nil)))
	require.NoError(t, err)

	f.ticks(2)

	require.NotNil(t, forkCtx)
	require.NotNil(t, parentCtx)
	assert.NotEqual(t, forkCtx.ID, parentCtx.ID)
	assert.Same(t, forkCtx.Snapshot, parentCtx.Snapshot)
	_, ok := parentCtx.Var("x")
	assert.False(t, ok)
}

func TestInterpreter_SpawnedDuringTickRunsNextTick(t *testing.T) {
	f := newFixture(t)
	child := &counter{interp: f.interp}
	childAbility := &Ability{ID: "child", Steps: []Step{{Mechanics: []Mechanic{child}}}}
	spawner := MechanicFunc(func(rt *Runtime, c *Context) error {
		_, err := rt.Spawn(childAbility, c.Clone(), 0)
		return err
	})
	_, err := f.interp.Start(&Ability{ID: "parent", Steps: []Step{{Mechanics: []Mechanic{spawner}}}}, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick()
	assert.Empty(t, child.fired)
	assert.Equal(t, 1, f.interp.Running())

	f.interp.Tick()
	assert.Equal(t, []uint64{2}, child.fired)
	assert.Equal(t, 0, f.interp.Running())
}

func TestInterpreter_Cancel(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	a := &Ability{ID: "slow", Steps: []Step{{Delay: 3}, {Mechanics: []Mechanic{mech}}}}
	id, err := f.interp.Start(a, f.context(nil))
	require.NoError(t, err)

	f.interp.Tick()
	assert.True(t, f.interp.Cancel(id))
	assert.False(t, f.interp.Cancel(id), "second cancel is a no-op")

	f.ticks(5)
	assert.Empty(t, mech.fired)
	assert.Equal(t, uint64(1), f.interp.Stats().Cancelled)
}

func TestInterpreter_CancelCaster(t *testing.T) {
	f := newFixture(t)
	a := &Ability{ID: "channel", Steps: []Step{{Delay: 10}}}
	p1, p2 := newTestSubject("p1", nil), newTestSubject("p2", nil)
	for range 3 {
		_, err := f.interp.Start(a, f.context(p1))
		require.NoError(t, err)
	}
	_, err := f.interp.Start(a, f.context(p2))
	require.NoError(t, err)

	assert.Equal(t, 3, f.interp.CancelCaster("p1"))
	assert.Equal(t, 1, f.interp.Running())
}

func TestInterpreter_SelfCancelInsideMechanic(t *testing.T) {
	f := newFixture(t)
	after := &counter{interp: f.interp}
	var id ecs.EntityID
	cancelSelf := MechanicFunc(func(*Runtime, *Context) error {
		f.interp.Cancel(id)
		return nil
	})
	a := &Ability{ID: "abort", Steps: []Step{{Mechanics: []Mechanic{cancelSelf}}, {Mechanics: []Mechanic{after}}}}

	var err error
	id, err = f.interp.Start(a, f.context(nil))
	require.NoError(t, err)
	f.interp.Tick()

	assert.Empty(t, after.fired)
	assert.Equal(t, 0, f.interp.Running())
	assert.Equal(t, uint64(0), f.interp.Stats().Completed)
}

func TestInterpreter_NotReadyCasterIsSkipped(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	caster := newTestSubject("loading", nil)
	caster.notReady = true
	c := f.context(caster)
	_, err := f.interp.Start(&Ability{ID: "wait", Steps: []Step{{Mechanics: []Mechanic{mech}}}}, c)
	require.NoError(t, err)

	f.ticks(3)
	assert.Empty(t, mech.fired)

	caster.notReady = false
	f.interp.Tick()
	assert.Len(t, mech.fired, 1)
}

func TestInterpreter_RemovedTargetIsSkipped(t *testing.T) {
	f := newFixture(t)
	caster := newTestSubject("p1", map[string]float64{"physicalDamage": 5})
	victim := target("mob", 1)
	a := &Ability{ID: "slow", Steps: []Step{
		{Delay: 2},
		{Mechanics: []Mechanic{mustMechanic(t, "damage", params.Tree{"amount": 10, "tags": "PHYSICAL"})}},
	}}

	_, err := f.interp.Start(a, f.context(caster, victim))
	require.NoError(t, err)
	f.interp.Tick()

	delete(f.known, "mob")
	f.engine.Invalidate("mob")
	f.ticks(2)

	assert.Empty(t, f.sink.all(), "a removed target takes no damage")
	assert.False(t, f.engine.Cached("mob", "defense"), "nothing resolves stats of a removed target")
	assert.Equal(t, 0, f.interp.Running())
}

func TestInterpreter_RemovedCasterParks(t *testing.T) {
	f := newFixture(t)
	mech := &counter{interp: f.interp}
	caster := newTestSubject("p1", nil)
	_, err := f.interp.Start(&Ability{ID: "wait", Steps: []Step{{Mechanics: []Mechanic{mech}}}}, f.context(caster))
	require.NoError(t, err)

	delete(f.known, "p1")
	f.ticks(2)
	assert.Empty(t, mech.fired)
	assert.Equal(t, 1, f.interp.CancelCaster("p1"))
}

func TestInterpreter_StartValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.interp.Start(nil, f.context(nil))
	assert.Error(t, err)
	_, err = f.interp.Start(&Ability{ID: "x"}, nil)
	assert.Error(t, err)
}

func BenchmarkInterpreter_Tick(b *testing.B) {
	w := ecs.NewWorld()
	in := NewInterpreter(w, &Runtime{})
	noop := MechanicFunc(func(*Runtime, *Context) error { return nil })
	a := &Ability{ID: "loop", Steps: []Step{{Mechanics: []Mechanic{noop}, Delay: 1_000_000}}}
	for range 1000 {
		_, _ = in.Start(a, NewContext("loop", "", nil, model.Location{}))
	}

	for b.Loop() {
		in.Tick()
	}
}
