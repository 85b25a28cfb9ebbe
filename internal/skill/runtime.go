package skill

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/udisondev/skillflow/internal/combat"
	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

// DamageSink applies pipeline results to the host's displayed health.
type DamageSink interface {
	ApplyDamage(c *Context, target targeting.Target, amount float64, critical bool)
	ApplyHeal(c *Context, target targeting.Target, amount float64)
}

// Feedback is one presentation event for the host.
type Feedback struct {
	Kind    string // particle, sound, message
	Name    string
	Params  params.Tree
	Context *Context
	At      []model.Location
}

// EffectHost renders feedback. Implementations must not block.
type EffectHost interface {
	Feedback(fb Feedback)
}

// ScriptRunner delegates to the embedded scripting subsystem by script name and hook.
// ctx is the *Context, passed opaquely.
type ScriptRunner interface {
	Call(name, hook string, ctx any) (bool, error)
}

// Subjects looks live subjects up by id.
type Subjects interface {
	Subject(id string) (stat.Subject, bool)
}

// Runtime is the set of collaborators every element sees.
// Nil collaborators disable the elements that need them.
type Runtime struct {
	Stats     *stat.Engine
	Damage    *combat.Pipeline
	Formulas  *formula.Evaluator
	World     targeting.World
	// Subjects resolves ids the World does not place. Lookups try Subjects first,
	// then World when it implements Subjects.
	Subjects  Subjects
	Sink      DamageSink
	Host      EffectHost
	Scripts   ScriptRunner
	Buffs     *BuffManager
	Abilities *Library
	Threat    targeting.ThreatProvider

	// Roll returns uniform [0,100). Defaults to math/rand/v2.
	Roll func() float64

	interp *Interpreter
}

var (
	errNoSink    = errors.New("no damage sink configured")
	errNoScripts = errors.New("no script runner configured")
)

func (rt *Runtime) roll() float64 {
	if rt.Roll != nil {
		return rt.Roll()
	}
	return rand.Float64() * 100
}

// Resolve returns a live stat of s; 0 without a stat engine.
func (rt *Runtime) Resolve(s stat.Subject, id string) float64 {
	if rt.Stats == nil || s == nil {
		return 0
	}
	return rt.Stats.Resolve(s, id)
}

// Subject resolves a live subject. Ids that no longer resolve (despawned,
// released) report false.
func (rt *Runtime) Subject(id string) (stat.Subject, bool) {
	if id == "" {
		return nil, false
	}
	if rt.Subjects != nil {
		if s, ok := rt.Subjects.Subject(id); ok {
			return s, true
		}
	}
	if d, ok := rt.World.(Subjects); ok {
		return d.Subject(id)
	}
	return nil, false
}

// Targets resolves the context's targets for one use. Ground points are kept,
// subjects get their current location, and ids that no longer resolve are skipped.
func (rt *Runtime) Targets(c *Context) []targeting.Target {
	out := make([]targeting.Target, 0, len(c.Targets))
	for _, ref := range c.Targets {
		if ref.ID == "" {
			out = append(out, targeting.Target{Location: ref.Location})
			continue
		}
		s, ok := rt.Subject(ref.ID)
		if !ok {
			continue
		}
		loc := ref.Location
		if rt.World != nil {
			if l, ok := rt.World.Locate(ref.ID); ok {
				loc = l
			}
		}
		out = append(out, targeting.Target{Subject: s, Location: loc})
	}
	return out
}

// casterReady reports whether c's caster can act this tick: it still resolves
// and, when it loads asynchronously, is ready.
func (rt *Runtime) casterReady(c *Context) bool {
	if c.Caster == "" {
		return true
	}
	s, ok := rt.Subject(c.Caster)
	if !ok {
		return false
	}
	if a, ok := s.(stat.Availability); ok {
		return a.Ready()
	}
	return true
}

// Tick returns the interpreter's tick counter.
func (rt *Runtime) Tick() uint64 {
	if rt.interp == nil {
		return 0
	}
	return rt.interp.Ticks()
}

// Spawn starts an independent instance of a on the next tick, parked for delay ticks.
func (rt *Runtime) Spawn(a *Ability, c *Context, delay int) (ecs.EntityID, error) {
	if a == nil {
		return ecs.InvalidEntity, fmt.Errorf("spawn: nil ability")
	}
	if rt.interp == nil {
		return ecs.InvalidEntity, fmt.Errorf("spawn %s: runtime is not attached to an interpreter", a.ID)
	}
	return rt.interp.spawn(a, a.Steps, c, delay, false)
}

// Eval evaluates a numeric expression for c. Identifiers resolve to context
// variables first, then caster snapshot stats, then 0.
func (rt *Runtime) Eval(expr string, c *Context) (float64, error) {
	if rt.Formulas == nil {
		return 0, fmt.Errorf("eval %q: no formula evaluator configured", expr)
	}
	expr = formula.Normalize(expr)
	names := formula.Identifiers(expr)
	vars := make(map[string]float64, len(names))
	for _, name := range names {
		if _, ok := c.Vars[name]; ok {
			vars[name] = c.Float(name)
			continue
		}
		vars[name] = c.Snapshot.Value(name)
	}
	return rt.Formulas.Eval(expr, vars)
}

// amount is a literal or formula number from a config node.
type amount struct {
	value   float64
	formula string
}

func amountFrom(p params.Tree, key string) (amount, error) {
	if !p.Has(key) {
		return amount{}, fmt.Errorf("missing %q", key)
	}
	if v, ok := p[key].(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return amount{value: f}, nil
		}
		return amount{formula: v}, nil
	}
	return amount{value: p.Float(key, 0)}, nil
}

func (a amount) eval(rt *Runtime, c *Context) (float64, error) {
	if a.formula == "" {
		return a.value, nil
	}
	return rt.Eval(a.formula, c)
}
