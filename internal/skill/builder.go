package skill

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/targeting"
)

// Builder turns ability config trees into Abilities.
//
// Broken elements (unknown key, bad parameters) are skipped and logged; the rest of
// the ability still loads. Only a missing id fails the whole ability.
type Builder struct {
	reg    *Registries
	stats  targeting.StatResolver
	threat targeting.ThreatProvider
}

// NewBuilder creates a builder. stats and threat back the targeter sort keys and
// stat filters; both may be nil.
func NewBuilder(reg *Registries, stats targeting.StatResolver, threat targeting.ThreatProvider) *Builder {
	return &Builder{reg: reg, stats: stats, threat: threat}
}

// Ability builds one ability. id overrides p["id"] when non-empty.
//
//	name: Fireball
//	cooldown: 40          # ticks
//	steps:
//	  - target: {shape: cone, range: 8, angle: 30, sort: distance, limit: 3}
//	    conditions: [{type: chance, percent: 50}]
//	    effects: [{type: particle, name: flame}]
//	    mechanics: [{type: damage, amount: 20, tags: [MAGIC]}]
//	    delay: 5
//	    async: false
func (b *Builder) Ability(id string, p params.Tree) (*Ability, error) {
	if id == "" {
		id = p.String("id", "")
	}
	if id == "" {
		return nil, fmt.Errorf("ability without id")
	}
	a := &Ability{
		ID:       id,
		Name:     p.String("name", id),
		Cooldown: max(p.Int("cooldown", 0), 0),
	}
	for i, sp := range p.List("steps") {
		a.Steps = append(a.Steps, b.Step(id, i, sp))
	}
	return a, nil
}

// Step builds one step, skipping broken elements.
func (b *Builder) Step(abilityID string, idx int, p params.Tree) Step {
	st := Step{
		Delay: max(p.Int("delay", 0), 0),
		Async: p.Bool("async", false),
	}

	if tp := p.Sub("target"); tp != nil {
		tg, err := b.Targeter(tp)
		if err != nil {
			configError(abilityID, idx, "target", err)
		} else {
			st.Targeter = tg
		}
	}

	st.Conditions = buildAll(b.reg.Conditions, abilityID, idx, "conditions", p.List("conditions"))
	st.Effects = buildAll(b.reg.Effects, abilityID, idx, "effects", p.List("effects"))
	st.Mechanics = buildAll(b.reg.Mechanics, abilityID, idx, "mechanics", p.List("mechanics"))
	return st
}

func buildAll[T any](reg *Registry[T], abilityID string, idx int, section string, nodes []params.Tree) []T {
	out := make([]T, 0, len(nodes))
	for _, n := range nodes {
		v, err := reg.Create(n.String("type", ""), n)
		if err != nil {
			configError(abilityID, idx, section, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func configError(abilityID string, idx int, section string, err error) {
	slog.Warn("ability element skipped",
		"ability", abilityID,
		"step", idx,
		"section", section,
		"error", err)
}

// Targeter builds a targeter from
//
//	shape: radius          # self|radius|cone|ray|annulus
//	radius: 5              # shape parameters
//	filters: [{type: exclude_caster}, {type: stat, stat: health, op: ">", value: 0}]
//	sort: distance         # distance|health|threat
//	order: asc
//	limit: 2
func (b *Builder) Targeter(p params.Tree) (*targeting.Targeter, error) {
	shape, err := targeting.NewShape(p.String("shape", "self"), p)
	if err != nil {
		return nil, err
	}
	sorter, err := targeting.NewSorter(p, b.stats, b.threat)
	if err != nil {
		return nil, err
	}
	tg := &targeting.Targeter{
		Shape:  shape,
		Sorter: sorter,
		Limit:  max(p.Int("limit", 0), 0),
	}
	for i, fp := range p.List("filters") {
		f, err := b.filter(fp)
		if err != nil {
			slog.Warn("target filter skipped", "index", i, "error", err)
			continue
		}
		tg.Filters = append(tg.Filters, f)
	}
	return tg, nil
}

func (b *Builder) filter(p params.Tree) (targeting.Filter, error) {
	switch strings.ToLower(p.String("type", "")) {
	case "exclude_caster":
		return targeting.ExcludeCaster(), nil
	case "subjects_only":
		return targeting.SubjectsOnly(), nil
	case "stat":
		id := p.String("stat", "")
		if id == "" {
			return nil, fmt.Errorf("stat filter: stat id is required")
		}
		cmp, err := parseComparison(p.String("op", ">="))
		if err != nil {
			return nil, fmt.Errorf("stat filter: %w", err)
		}
		value := p.Float("value", 0)
		stats := b.stats
		return func(_ targeting.Origin, t targeting.Target) bool {
			if t.Subject == nil || stats == nil {
				return false
			}
			return cmp(stats.Resolve(t.Subject, id), value)
		}, nil
	}
	return nil, fmt.Errorf("unknown target filter %q", p.String("type", ""))
}
