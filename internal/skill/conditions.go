package skill

import (
	"fmt"
	"strings"

	"github.com/udisondev/skillflow/internal/params"
)

func registerConditions(r *Registries) {
	r.Conditions.Register("chance", newChanceCondition)
	r.Conditions.Register("stat", newStatCondition)
	r.Conditions.Register("has_targets", newHasTargetsCondition)
	r.Conditions.Register("variable", newVariableCondition)
	r.Conditions.Register("not", func(p params.Tree) (Condition, error) {
		return newNotCondition(r.Conditions, p)
	})
	r.Conditions.Register("script", newScriptCondition)
}

// chance: percent (0..100).
func newChanceCondition(p params.Tree) (Condition, error) {
	pct := p.Float("percent", p.Float("chance", -1))
	if pct < 0 {
		return nil, fmt.Errorf("chance: percent is required")
	}
	return ConditionFunc(func(rt *Runtime, _ *Context) (bool, error) {
		return rt.roll() < pct, nil
	}), nil
}

// comparison is a numeric comparator parsed from config ("<", ">=", "eq", ...).
type comparison func(a, b float64) bool

func parseComparison(op string) (comparison, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "<", "lt":
		return func(a, b float64) bool { return a < b }, nil
	case "<=", "le", "lte":
		return func(a, b float64) bool { return a <= b }, nil
	case ">", "gt":
		return func(a, b float64) bool { return a > b }, nil
	case ">=", "ge", "gte", "":
		return func(a, b float64) bool { return a >= b }, nil
	case "==", "=", "eq":
		return func(a, b float64) bool { return a == b }, nil
	case "!=", "ne":
		return func(a, b float64) bool { return a != b }, nil
	}
	return nil, fmt.Errorf("unknown comparison %q", op)
}

// stat: stat, op, value, of (caster|target), mode (all|any) for targets.
// Caster values come from the cast snapshot; target values are resolved live.
func newStatCondition(p params.Tree) (Condition, error) {
	id := p.String("stat", "")
	if id == "" {
		return nil, fmt.Errorf("stat: stat id is required")
	}
	cmp, err := parseComparison(p.String("op", ">="))
	if err != nil {
		return nil, err
	}
	value := p.Float("value", 0)
	anyTarget := strings.EqualFold(p.String("mode", "all"), "any")

	switch strings.ToLower(p.String("of", "caster")) {
	case "caster", "self":
		return ConditionFunc(func(_ *Runtime, c *Context) (bool, error) {
			return cmp(c.CasterStat(id), value), nil
		}), nil
	case "target", "targets":
		return ConditionFunc(func(rt *Runtime, c *Context) (bool, error) {
			matched, seen := 0, 0
			for _, t := range rt.Targets(c) {
				if t.Subject == nil {
					continue
				}
				seen++
				if cmp(rt.Resolve(t.Subject, id), value) {
					matched++
				}
			}
			if anyTarget {
				return matched > 0, nil
			}
			return seen > 0 && matched == seen, nil
		}), nil
	}
	return nil, fmt.Errorf("stat: unknown subject %q", p.String("of", ""))
}

// has_targets: min (default 1).
func newHasTargetsCondition(p params.Tree) (Condition, error) {
	minTargets := p.Int("min", 1)
	return ConditionFunc(func(rt *Runtime, c *Context) (bool, error) {
		return len(rt.Targets(c)) >= minTargets, nil
	}), nil
}

// variable: name, op, value. With op "exists" only presence is checked.
func newVariableCondition(p params.Tree) (Condition, error) {
	name := p.String("name", "")
	if name == "" {
		return nil, fmt.Errorf("variable: name is required")
	}
	op := p.String("op", "exists")
	if strings.EqualFold(op, "exists") {
		return ConditionFunc(func(_ *Runtime, c *Context) (bool, error) {
			_, ok := c.Var(name)
			return ok, nil
		}), nil
	}
	cmp, err := parseComparison(op)
	if err != nil {
		return nil, err
	}
	value := p.Float("value", 0)
	return ConditionFunc(func(_ *Runtime, c *Context) (bool, error) {
		return cmp(c.Float(name), value), nil
	}), nil
}

// not: condition (nested node with its own type).
func newNotCondition(reg *Registry[Condition], p params.Tree) (Condition, error) {
	inner := p.Sub("condition")
	if inner == nil {
		return nil, fmt.Errorf("not: nested condition is required")
	}
	cond, err := reg.Create(inner.String("type", ""), inner)
	if err != nil {
		return nil, fmt.Errorf("not: %w", err)
	}
	return ConditionFunc(func(rt *Runtime, c *Context) (bool, error) {
		ok, err := cond.Check(rt, c)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}), nil
}

// script: name, hook (default "check").
func newScriptCondition(p params.Tree) (Condition, error) {
	name := p.String("name", p.String("script", ""))
	if name == "" {
		return nil, fmt.Errorf("script: name is required")
	}
	hook := p.String("hook", "check")
	return ConditionFunc(func(rt *Runtime, c *Context) (bool, error) {
		if rt.Scripts == nil {
			return false, errNoScripts
		}
		return rt.Scripts.Call(name, hook, c)
	}), nil
}
