package skill

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

var (
	// ErrNotFound is returned for unknown ability ids.
	ErrNotFound = errors.New("ability not found")
	// ErrOnCooldown is returned when the caster's cooldown for the ability has not elapsed.
	ErrOnCooldown = errors.New("ability on cooldown")
	// ErrNotReady is returned for casters whose data is still loading.
	ErrNotReady = errors.New("caster not ready")
)

// CastRequest describes one cast.
type CastRequest struct {
	Caster    stat.Subject
	AbilityID string
	// Origin is used when the host world cannot locate the caster.
	Origin  model.Location
	Targets []targeting.Target
	Vars    map[string]any
}

// Caster is the cast entry point: ability lookup, cooldowns, snapshot, instance start.
// Cooldowns are counted in interpreter ticks. Methods run on the simulation goroutine
// except Cooldown, which may be read concurrently.
type Caster struct {
	interp    *Interpreter
	abilities *Library

	mu        sync.RWMutex
	cooldowns map[string]map[string]uint64 // caster -> ability -> ready at tick
}

// NewCaster creates a caster starting instances on interp.
func NewCaster(interp *Interpreter, abilities *Library) *Caster {
	return &Caster{
		interp:    interp,
		abilities: abilities,
		cooldowns: make(map[string]map[string]uint64, 64),
	}
}

// Cast validates the request, captures the caster snapshot and starts the ability.
func (cs *Caster) Cast(req CastRequest) (ecs.EntityID, error) {
	if req.Caster == nil {
		return ecs.InvalidEntity, fmt.Errorf("cast %s: nil caster", req.AbilityID)
	}
	a, ok := cs.abilities.Get(req.AbilityID)
	if !ok {
		return ecs.InvalidEntity, fmt.Errorf("cast: %w: %q", ErrNotFound, req.AbilityID)
	}
	if av, ok := req.Caster.(stat.Availability); ok && !av.Ready() {
		return ecs.InvalidEntity, fmt.Errorf("cast %s by %s: %w", req.AbilityID, req.Caster.ID(), ErrNotReady)
	}
	if left := cs.Cooldown(req.Caster.ID(), a.ID); left > 0 {
		return ecs.InvalidEntity, fmt.Errorf("cast %s by %s: %w (%d ticks left)", a.ID, req.Caster.ID(), ErrOnCooldown, left)
	}

	rt := cs.interp.Runtime()
	var snap *stat.Snapshot
	if rt.Stats != nil {
		snap = rt.Stats.Snapshot(req.Caster)
	} else {
		snap = stat.NewSnapshot(req.Caster.ID(), req.Caster.DisplayName(), 1, nil)
	}

	origin := req.Origin
	if rt.World != nil {
		if loc, ok := rt.World.Locate(req.Caster.ID()); ok {
			origin = loc
		}
	}

	c := NewContext(a.ID, req.Caster.ID(), snap, origin)
	c.AddTargets(req.Targets...)
	for k, v := range req.Vars {
		c.SetVar(k, v)
	}

	id, err := cs.interp.Start(a, c)
	if err != nil {
		return ecs.InvalidEntity, fmt.Errorf("cast %s: %w", a.ID, err)
	}
	if a.Cooldown > 0 {
		cs.setCooldown(req.Caster.ID(), a.ID, cs.interp.Ticks()+uint64(a.Cooldown))
	}

	slog.Debug("ability cast",
		"caster", req.Caster.ID(),
		"ability", a.ID,
		"entity", id,
		"targets", len(c.Targets),
		"cooldown", a.Cooldown)
	return id, nil
}

// Cooldown returns the ticks left before casterID may cast abilityID again.
func (cs *Caster) Cooldown(casterID, abilityID string) int {
	cs.mu.RLock()
	readyAt, ok := cs.cooldowns[casterID][abilityID]
	cs.mu.RUnlock()
	if !ok {
		return 0
	}
	now := cs.interp.Ticks()
	if now >= readyAt {
		return 0
	}
	return int(readyAt - now)
}

// ResetCooldowns clears every cooldown of the caster.
func (cs *Caster) ResetCooldowns(casterID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.cooldowns, casterID)
}

// Disconnect cancels the caster's running instances and forgets its cooldowns.
func (cs *Caster) Disconnect(casterID string) int {
	n := cs.interp.CancelCaster(casterID)
	cs.ResetCooldowns(casterID)
	return n
}

func (cs *Caster) setCooldown(casterID, abilityID string, readyAt uint64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	byAbility, ok := cs.cooldowns[casterID]
	if !ok {
		byAbility = make(map[string]uint64, 4)
		cs.cooldowns[casterID] = byAbility
	}
	byAbility[abilityID] = readyAt
}
