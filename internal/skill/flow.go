package skill

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/udisondev/skillflow/internal/ecs"
)

// Instance is the resumable state of one running cast, stored as a component on a
// scratch entity. Index only grows, Delay only shrinks; the entity is removed once
// Index >= len(Steps) and Delay <= 0.
type Instance struct {
	Ability *Ability
	Steps   []Step // Ability.Steps, or the single body of an async fork
	Index   int
	Delay   int
	Ctx     *Context
	Forked  bool
}

// Done reports whether the instance has nothing left to do.
func (i *Instance) Done() bool {
	return i.Index >= len(i.Steps) && i.Delay <= 0
}

// FlowStats are cumulative interpreter counters.
type FlowStats struct {
	Started   uint64
	Completed uint64
	Cancelled uint64
	Faults    uint64
}

// Interpreter advances Instances. Start, Tick and Cancel must run on the
// simulation goroutine; Running and Stats may be read from anywhere.
type Interpreter struct {
	world *ecs.World
	rt    *Runtime
	ticks atomic.Uint64

	started   atomic.Uint64
	completed atomic.Uint64
	cancelled atomic.Uint64
	faults    atomic.Uint64
}

// NewInterpreter creates an interpreter storing instances in w and attaches rt.
func NewInterpreter(w *ecs.World, rt *Runtime) *Interpreter {
	if rt == nil {
		rt = &Runtime{}
	}
	in := &Interpreter{world: w, rt: rt}
	rt.interp = in
	return in
}

// Runtime returns the attached runtime.
func (in *Interpreter) Runtime() *Runtime { return in.rt }

// Start creates a running instance of a. It is first stepped on the next Tick.
func (in *Interpreter) Start(a *Ability, c *Context) (ecs.EntityID, error) {
	if a == nil {
		return ecs.InvalidEntity, fmt.Errorf("start: nil ability")
	}
	return in.spawn(a, a.Steps, c, 0, false)
}

func (in *Interpreter) spawn(a *Ability, steps []Step, c *Context, delay int, forked bool) (ecs.EntityID, error) {
	if c == nil {
		return ecs.InvalidEntity, fmt.Errorf("start %s: nil context", a.ID)
	}
	if c.AbilityID == "" {
		c.AbilityID = a.ID
	}
	id := in.world.Create()
	ecs.Add(in.world, id, &Instance{
		Ability: a,
		Steps:   steps,
		Delay:   max(delay, 0),
		Ctx:     c,
		Forked:  forked,
	})
	in.started.Add(1)

	if IsDebugEnabled() {
		slog.Debug("ability instance started",
			"ability", a.ID,
			"entity", id,
			"caster", c.CasterID(),
			"delay", delay)
	}
	return id, nil
}

// Tick advances every instance that existed when the tick began.
func (in *Interpreter) Tick() {
	in.ticks.Add(1)
	for _, id := range ecs.EntitiesWith[*Instance](in.world) {
		inst, ok := ecs.Get[*Instance](in.world, id)
		if !ok {
			continue // cancelled earlier in this tick
		}
		in.advance(id, inst)
	}
}

// Ticks returns the number of completed Tick calls.
func (in *Interpreter) Ticks() uint64 {
	return in.ticks.Load()
}

// Running returns the number of live instances.
func (in *Interpreter) Running() int {
	return ecs.CountWith[*Instance](in.world)
}

// Instance returns the live instance on id.
func (in *Interpreter) Instance(id ecs.EntityID) (*Instance, bool) {
	return ecs.Get[*Instance](in.world, id)
}

// Cancel removes a running instance. Unknown ids are a no-op.
func (in *Interpreter) Cancel(id ecs.EntityID) bool {
	if !ecs.Has[*Instance](in.world, id) {
		return false
	}
	if !in.world.Remove(id) {
		return false
	}
	in.cancelled.Add(1)
	return true
}

// CancelCaster removes every instance cast by casterID and returns how many.
func (in *Interpreter) CancelCaster(casterID string) int {
	n := 0
	for _, id := range ecs.EntitiesWith[*Instance](in.world) {
		inst, ok := ecs.Get[*Instance](in.world, id)
		if !ok || inst.Ctx.CasterID() != casterID {
			continue
		}
		if in.Cancel(id) {
			n++
		}
	}
	if n > 0 {
		slog.Debug("caster instances cancelled", "caster", casterID, "count", n)
	}
	return n
}

// Stats returns a copy of the counters.
func (in *Interpreter) Stats() FlowStats {
	return FlowStats{
		Started:   in.started.Load(),
		Completed: in.completed.Load(),
		Cancelled: in.cancelled.Load(),
		Faults:    in.faults.Load(),
	}
}

// advance steps one instance. A caster that is not ready or no longer resolves
// parks the instance for the tick; hosts cancel it with CancelCaster.
func (in *Interpreter) advance(id ecs.EntityID, inst *Instance) {
	if !in.rt.casterReady(inst.Ctx) {
		return
	}

	if inst.Delay > 0 {
		inst.Delay--
		if inst.Delay > 0 {
			return
		}
	}

	for inst.Index < len(inst.Steps) && inst.Delay <= 0 {
		idx := inst.Index
		st := &inst.Steps[idx]

		if st.Async {
			in.fork(inst, st)
			inst.Index++
			continue
		}

		ran := in.runStep(inst, idx, st)
		inst.Index++
		if ran && st.Delay > 0 {
			inst.Delay = st.Delay
		}

		// a mechanic may have cancelled this very instance
		if !in.world.Alive(id) {
			return
		}
	}

	if inst.Done() {
		in.finish(id, inst)
	}
}

// fork runs the body of an async step in a child instance with a cloned context.
func (in *Interpreter) fork(parent *Instance, st *Step) {
	body := *st
	body.Async = false
	body.Delay = 0
	if _, err := in.spawn(parent.Ability, []Step{body}, parent.Ctx.Clone(), st.Delay, true); err != nil {
		slog.Warn("async step fork failed", "ability", parent.Ability.ID, "error", err)
	}
}

// runStep executes one step. Returns false when a pre-condition failed, in which
// case nothing else of the step ran.
func (in *Interpreter) runStep(inst *Instance, idx int, st *Step) bool {
	c := inst.Ctx

	for i, cond := range st.Conditions {
		var passed bool
		ok := in.guard(inst, idx, "condition", i, func() error {
			var err error
			passed, err = cond.Check(in.rt, c)
			return err
		})
		if !ok || !passed {
			return false
		}
	}

	if st.Targeter != nil {
		in.guard(inst, idx, "targeter", 0, func() error {
			c.SetTargets(st.Targeter.Select(in.rt.World, c.targetingOrigin(in.rt)))
			return nil
		})
	}

	for i, eff := range st.Effects {
		in.guard(inst, idx, "effect", i, func() error {
			return eff.Play(in.rt, c)
		})
	}

	for i, mech := range st.Mechanics {
		ok := in.guard(inst, idx, "mechanic", i, func() error {
			return mech.Apply(in.rt, c)
		})
		if !ok {
			break
		}
	}
	return true
}

// guard runs fn, turning panics and errors into a logged fault.
func (in *Interpreter) guard(inst *Instance, step int, kind string, elem int, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			in.fault(inst, step, kind, elem, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		in.fault(inst, step, kind, elem, err)
		return false
	}
	return true
}

func (in *Interpreter) fault(inst *Instance, step int, kind string, elem int, err error) {
	in.faults.Add(1)
	slog.Warn("ability step fault",
		"ability", inst.Ability.ID,
		"step", step,
		"element", kind,
		"index", elem,
		"caster", inst.Ctx.CasterID(),
		"error", err)
}

func (in *Interpreter) finish(id ecs.EntityID, inst *Instance) {
	if !in.world.Remove(id) {
		slog.Error("ability instance released twice", "ability", inst.Ability.ID, "entity", id)
		return
	}
	in.completed.Add(1)

	if IsDebugEnabled() {
		slog.Debug("ability instance done", "ability", inst.Ability.ID, "entity", id)
	}
}
