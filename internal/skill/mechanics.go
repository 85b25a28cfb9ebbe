package skill

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/udisondev/skillflow/internal/combat"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/targeting"
)

// VarDamageDealt accumulates the final damage a cast dealt.
const VarDamageDealt = "damage_dealt"

func registerMechanics(r *Registries) {
	r.Mechanics.Register("damage", newDamageMechanic)
	r.Mechanics.Register("heal", newHealMechanic)
	r.Mechanics.Register("buff", newBuffMechanic)
	r.Mechanics.Register("set_variable", newSetVariableMechanic)
	r.Mechanics.Register("clear_targets", newClearTargetsMechanic)
	r.Mechanics.Register("projectile", newProjectileMechanic)
	r.Mechanics.Register("script", newScriptMechanic)
}

// damage: amount (number or formula), tags.
// Every subject target gets its own DamageContext; the result goes to the sink.
func newDamageMechanic(p params.Tree) (Mechanic, error) {
	amt, err := amountFrom(p, "amount")
	if err != nil {
		return nil, fmt.Errorf("damage: %w", err)
	}
	tags, err := combat.ParseTags(p.Strings("tags"))
	if err != nil {
		return nil, fmt.Errorf("damage: %w", err)
	}
	return MechanicFunc(func(rt *Runtime, c *Context) error {
		if rt.Sink == nil {
			return errNoSink
		}
		if rt.Damage == nil {
			return fmt.Errorf("damage: no pipeline configured")
		}
		initial, err := amt.eval(rt, c)
		if err != nil {
			return fmt.Errorf("damage amount: %w", err)
		}

		attacker, _ := rt.Subject(c.Caster)
		var errs []error
		for _, t := range rt.Targets(c) {
			if t.Subject == nil {
				continue
			}
			dc := &combat.DamageContext{
				Attacker:         attacker,
				AttackerSnapshot: c.Snapshot,
				Victim:           t.Subject,
				Initial:          initial,
				Tags:             tags,
			}
			final, err := rt.Damage.Process(dc)
			if err != nil {
				errs = append(errs, fmt.Errorf("target %s: %w", t.ID(), err))
				continue
			}
			rt.Sink.ApplyDamage(c, t, final, dc.Critical())
			c.SetVar(VarDamageDealt, c.Float(VarDamageDealt)+final)
		}
		return errors.Join(errs...)
	}), nil
}

// heal: amount (number or formula).
func newHealMechanic(p params.Tree) (Mechanic, error) {
	amt, err := amountFrom(p, "amount")
	if err != nil {
		return nil, fmt.Errorf("heal: %w", err)
	}
	return MechanicFunc(func(rt *Runtime, c *Context) error {
		if rt.Sink == nil {
			return errNoSink
		}
		v, err := amt.eval(rt, c)
		if err != nil {
			return fmt.Errorf("heal amount: %w", err)
		}
		v = math.Max(0, v)
		for _, t := range rt.Targets(c) {
			if t.Subject != nil {
				rt.Sink.ApplyHeal(c, t, v)
			}
		}
		return nil
	}), nil
}

// buff: stat, value (number or formula), duration (ticks), group, level, on (self|targets).
func newBuffMechanic(p params.Tree) (Mechanic, error) {
	statID := p.String("stat", "")
	if statID == "" {
		return nil, fmt.Errorf("buff: stat is required")
	}
	amt, err := amountFrom(p, "value")
	if err != nil {
		return nil, fmt.Errorf("buff: %w", err)
	}
	duration := p.Int("duration", 0)
	if duration <= 0 {
		return nil, fmt.Errorf("buff: duration must be positive")
	}
	group := p.String("group", "")
	level := p.Int("level", 1)
	onSelf := strings.EqualFold(p.String("on", "targets"), "self")

	return MechanicFunc(func(rt *Runtime, c *Context) error {
		if rt.Buffs == nil {
			return fmt.Errorf("buff: no buff manager configured")
		}
		v, err := amt.eval(rt, c)
		if err != nil {
			return fmt.Errorf("buff value: %w", err)
		}
		b := Buff{
			Source: c.AbilityID,
			Group:  group,
			Level:  level,
			Stat:   statID,
			Value:  v,
			Ticks:  duration,
		}
		if b.Group == "" {
			b.Group = c.AbilityID + ":" + statID
		}

		if onSelf {
			if _, ok := rt.Subject(c.Caster); ok {
				rt.Buffs.Apply(c.Caster, b)
			}
			return nil
		}
		for _, t := range rt.Targets(c) {
			if t.Subject != nil {
				rt.Buffs.Apply(t.ID(), b)
			}
		}
		return nil
	}), nil
}

// set_variable: name, value (number, formula or plain string with string: true).
func newSetVariableMechanic(p params.Tree) (Mechanic, error) {
	name := p.String("name", "")
	if name == "" {
		return nil, fmt.Errorf("set_variable: name is required")
	}
	if p.Bool("string", false) {
		s := p.String("value", "")
		return MechanicFunc(func(_ *Runtime, c *Context) error {
			c.SetVar(name, s)
			return nil
		}), nil
	}
	amt, err := amountFrom(p, "value")
	if err != nil {
		return nil, fmt.Errorf("set_variable: %w", err)
	}
	return MechanicFunc(func(rt *Runtime, c *Context) error {
		v, err := amt.eval(rt, c)
		if err != nil {
			return err
		}
		c.SetVar(name, v)
		return nil
	}), nil
}

func newClearTargetsMechanic(params.Tree) (Mechanic, error) {
	return MechanicFunc(func(_ *Runtime, c *Context) error {
		c.ClearTargets()
		return nil
	}), nil
}

// projectile: ability, speed (units per tick; 0 = instant), delay (extra ticks).
// Spawns one independent instance of the sub-ability per target (or per ground
// location when there are no subject targets). Each child context holds only its
// impact target and is pinned to the impact point.
func newProjectileMechanic(p params.Tree) (Mechanic, error) {
	abilityID := p.String("ability", "")
	if abilityID == "" {
		return nil, fmt.Errorf("projectile: ability is required")
	}
	speed := p.Float("speed", 0)
	extra := max(p.Int("delay", 0), 0)

	return MechanicFunc(func(rt *Runtime, c *Context) error {
		if rt.Abilities == nil {
			return fmt.Errorf("projectile: no ability library configured")
		}
		sub, ok := rt.Abilities.Get(abilityID)
		if !ok {
			return fmt.Errorf("projectile: %w: ability %q", ErrNotFound, abilityID)
		}

		var impacts []targeting.Target
		for _, t := range rt.Targets(c) {
			if t.Subject != nil {
				impacts = append(impacts, t)
			}
		}
		if len(impacts) == 0 {
			for _, loc := range c.Locations {
				impacts = append(impacts, targeting.Target{Location: loc})
			}
		}
		from := c.targetingOrigin(rt).Location

		var errs []error
		for _, t := range impacts {
			child := c.Clone()
			child.AbilityID = sub.ID
			child.Origin = t.Location
			child.FixedOrigin = true
			child.Locations = []model.Location{t.Location}
			child.Targets = nil
			if t.Subject != nil {
				child.AddTargets(t)
			}

			delay := extra
			if speed > 0 {
				delay += int(math.Ceil(from.Distance(t.Location) / speed))
			}
			if _, err := rt.Spawn(sub, child, delay); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}), nil
}

// script: name, hook (default "run").
func newScriptMechanic(p params.Tree) (Mechanic, error) {
	name := p.String("name", p.String("script", ""))
	if name == "" {
		return nil, fmt.Errorf("script: name is required")
	}
	hook := p.String("hook", "run")
	return MechanicFunc(func(rt *Runtime, c *Context) error {
		if rt.Scripts == nil {
			return errNoScripts
		}
		_, err := rt.Scripts.Call(name, hook, c)
		return err
	}), nil
}
