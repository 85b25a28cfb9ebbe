// Package skill runs data-driven abilities.
//
// An Ability is an ordered list of Steps. Each Step may retarget, check conditions,
// fire feedback effects and invoke mechanics, then optionally park for a number of
// ticks. Conditions, mechanics and effects are looked up by string key in
// Registries, so new behaviour plugs in without touching the interpreter.
//
// Running casts live as Instance components in the shared ecs.World and are
// advanced by Interpreter.Tick on the simulation goroutine.
package skill

import (
	"slices"
	"sync"

	"github.com/udisondev/skillflow/internal/targeting"
)

// Condition is a step pre-condition.
type Condition interface {
	Check(rt *Runtime, c *Context) (bool, error)
}

// Mechanic changes game state: damage, heal, buffs, variables, spawns.
type Mechanic interface {
	Apply(rt *Runtime, c *Context) error
}

// Effect is fire-and-forget feedback for the host (particles, sounds, messages).
type Effect interface {
	Play(rt *Runtime, c *Context) error
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(rt *Runtime, c *Context) (bool, error)

func (f ConditionFunc) Check(rt *Runtime, c *Context) (bool, error) { return f(rt, c) }

// MechanicFunc adapts a function to Mechanic.
type MechanicFunc func(rt *Runtime, c *Context) error

func (f MechanicFunc) Apply(rt *Runtime, c *Context) error { return f(rt, c) }

// EffectFunc adapts a function to Effect.
type EffectFunc func(rt *Runtime, c *Context) error

func (f EffectFunc) Play(rt *Runtime, c *Context) error { return f(rt, c) }

// Step is one immutable stage of an ability.
type Step struct {
	Targeter   *targeting.Targeter // nil keeps the current targets
	Conditions []Condition
	Effects    []Effect
	Mechanics  []Mechanic
	Delay      int  // ticks to park after the step ran
	Async      bool // run the body in a forked instance after Delay; the parent moves on
}

// Ability is a named step sequence.
type Ability struct {
	ID       string
	Name     string
	Cooldown int // ticks
	Steps    []Step
}

// Library holds loaded abilities by id. Safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	abilities map[string]*Ability
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{abilities: make(map[string]*Ability, 64)}
}

// Add registers or replaces abilities.
func (l *Library) Add(abilities ...*Ability) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range abilities {
		if a != nil {
			l.abilities[a.ID] = a
		}
	}
}

// Get returns the ability with id.
func (l *Library) Get(id string) (*Ability, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.abilities[id]
	return a, ok
}

// IDs returns all ability ids, sorted.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.abilities))
	for id := range l.abilities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of abilities.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.abilities)
}
