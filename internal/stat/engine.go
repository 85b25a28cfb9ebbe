// Package stat resolves named numeric attributes for subjects.
//
// Resolution is layered: base value, external modifiers and equipment, weighted role
// contributions with level growth, stat-to-stat bonuses and finally kind-specific
// shaping. Results are cached per subject until the owner calls Invalidate; the
// engine never invalidates on its own.
//
// Formula graphs may be cyclic. A stat that is re-entered while it is being resolved
// contributes 0 instead of recursing.
package stat

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/udisondev/skillflow/internal/formula"
)

// Engine owns stat definitions and the per-subject caches.
// Safe for concurrent use; resolutions are serialised.
type Engine struct {
	mu sync.Mutex

	eval    *formula.Evaluator
	defs    map[string]Definition
	roles   map[string]Role
	bonuses map[string][]Bonus // by target
	sources []ModifierSource

	cache     map[string]map[string]float64 // subject -> stat -> value
	roleCache map[string]map[string]float64 // subject -> stat -> combined role value
}

// NewEngine creates an engine evaluating formulas with eval.
func NewEngine(eval *formula.Evaluator) *Engine {
	return &Engine{
		eval:      eval,
		defs:      make(map[string]Definition, 64),
		roles:     make(map[string]Role, 16),
		bonuses:   make(map[string][]Bonus, 16),
		cache:     make(map[string]map[string]float64, 256),
		roleCache: make(map[string]map[string]float64, 256),
	}
}

// Define registers stat definitions, replacing existing ones with the same id.
// Formulas are compiled eagerly; a definition with a broken formula is rejected.
func (e *Engine) Define(defs ...Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, d := range defs {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("stat definition without id"))
			continue
		}
		if d.Kind == KindFormula {
			if err := e.eval.Compile(d.Formula); err != nil {
				errs = append(errs, fmt.Errorf("stat %s: %w", d.ID, err))
				continue
			}
		}
		e.defs[d.ID] = d
	}
	e.resetLocked()
	return errors.Join(errs...)
}

// DefineRole registers or replaces a role.
func (e *Engine) DefineRole(r Role) error {
	for id, rs := range r.Stats {
		if rs.Growth == "" {
			continue
		}
		if err := e.eval.Compile(rs.Growth); err != nil {
			return fmt.Errorf("role %s stat %s: %w", r.Name, id, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles[r.Name] = r
	e.resetLocked()
	return nil
}

// AddBonus registers a stat-to-stat bonus.
func (e *Engine) AddBonus(b Bonus) error {
	if b.Source == "" || b.Target == "" {
		return fmt.Errorf("bonus needs source and target")
	}
	b.Formula = formula.Normalize(b.Formula)
	if err := e.eval.Compile(b.Formula); err != nil {
		return fmt.Errorf("bonus %s -> %s: %w", b.Source, b.Target, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.bonuses[b.Target] = append(e.bonuses[b.Target], b)
	e.resetLocked()
	return nil
}

// AddModifierSource registers an external modifier provider.
func (e *Engine) AddModifierSource(src ModifierSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources = append(e.sources, src)
	e.resetLocked()
}

// Definition returns the registered definition of id.
func (e *Engine) Definition(id string) (Definition, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.defs[id]
	return d, ok
}

// StatIDs returns all defined stat ids, sorted.
func (e *Engine) StatIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.defs))
	for id := range e.defs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Resolve returns the value of statID for s.
func (e *Engine) Resolve(s Subject, statID string) float64 {
	if s == nil || !isReady(s) {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := resolution{engine: e, subject: s, key: s.ID(), level: levelOf(s)}
	return r.resolve(statID)
}

// Invalidate drops every cached value of the subject, including role results.
func (e *Engine) Invalidate(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, subjectID)
	delete(e.roleCache, subjectID)
}

// InvalidateRoles drops the combined-role cache of the subject. Flat values depend on
// roles, so they are dropped as well.
func (e *Engine) InvalidateRoles(subjectID string) {
	e.Invalidate(subjectID)
}

// InvalidateAll clears every cache.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Cached reports whether statID of the subject is currently cached.
func (e *Engine) Cached(subjectID, statID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.cache[subjectID][statID]
	return ok
}

// Evaluations returns the number of formula evaluations performed so far.
func (e *Engine) Evaluations() uint64 {
	return e.eval.Evaluations()
}

func (e *Engine) resetLocked() {
	clear(e.cache)
	clear(e.roleCache)
}

// resolution is one top-level Resolve call. stack is the cycle guard.
// Frames below depth tainted saw a cut cycle and are not cached, so a
// cyclic stat resolves the same regardless of what was resolved before it.
type resolution struct {
	engine  *Engine
	subject Subject
	key     string
	level   int
	stack   []string
	tainted int
}

func (r *resolution) onStack(id string) bool {
	return slices.Contains(r.stack, id)
}

// cut marks every frame on the stack as depending on a cycle.
func (r *resolution) cut() {
	r.tainted = len(r.stack)
}

func (r *resolution) resolve(id string) float64 {
	e := r.engine
	if v, ok := e.cache[r.key][id]; ok {
		return v
	}
	if r.onStack(id) {
		slog.Debug("stat cycle cut", "subject", r.key, "stat", id, "chain", r.stack)
		r.cut()
		return 0
	}

	r.stack = append(r.stack, id)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	def, ok := e.defs[id]
	if !ok {
		def = Definition{ID: id}
	}

	value := def.Default
	if raw, ok := r.subject.RawStat(id); ok {
		value = raw
	}
	value += r.external(id)
	value += r.roleContribution(id)
	value += r.bonusContribution(id)
	value = r.shape(def, value)

	if depth := len(r.stack) - 1; depth < r.tainted {
		r.tainted = depth
		return value
	}

	byStat, ok := e.cache[r.key]
	if !ok {
		byStat = make(map[string]float64, 16)
		e.cache[r.key] = byStat
	}
	byStat[id] = value
	return value
}

// external sums subject modifiers, registered modifier sources and equipment.
func (r *resolution) external(id string) float64 {
	var sum float64
	if mh, ok := r.subject.(ModifierHolder); ok {
		for _, m := range mh.StatModifiers(id) {
			sum += m.Value
		}
	}
	for _, src := range r.engine.sources {
		sum += src.StatModifier(r.key, id)
	}
	if eq, ok := r.subject.(EquipmentHolder); ok {
		sum += eq.EquipmentStat(id)
	}
	return sum
}

func (r *resolution) roleContribution(id string) float64 {
	holder, ok := r.subject.(RoleHolder)
	if !ok {
		return 0
	}
	e := r.engine
	if v, ok := e.roleCache[r.key][id]; ok {
		return v
	}

	var total float64
	for _, a := range holder.Roles() {
		role, ok := e.roles[a.Role]
		if !ok {
			continue
		}
		rs, ok := role.Stats[id]
		if !ok {
			continue
		}
		total += r.roleValue(role.Name, id, rs) * a.Weight
	}

	byStat, ok := e.roleCache[r.key]
	if !ok {
		byStat = make(map[string]float64, 16)
		e.roleCache[r.key] = byStat
	}
	byStat[id] = total
	return total
}

func (r *resolution) roleValue(role, id string, rs RoleStat) float64 {
	if n := len(rs.Table); n > 0 {
		idx := min(max(r.level-1, 0), n-1)
		return rs.Table[idx]
	}
	if rs.Growth == "" {
		return rs.Base + rs.PerLevel*float64(r.level-1)
	}
	growth, err := r.engine.eval.Eval(rs.Growth, map[string]float64{
		"level": float64(r.level),
		"base":  rs.Base,
	})
	if err != nil {
		slog.Warn("role growth formula failed", "role", role, "stat", id, "error", err)
		return rs.Base
	}
	return rs.Base + growth
}

func (r *resolution) bonusContribution(id string) float64 {
	var sum float64
	for _, b := range r.engine.bonuses[id] {
		if r.onStack(b.Source) {
			r.cut()
			continue
		}
		src := r.resolve(b.Source)
		vars := map[string]float64{"value": src, "level": float64(r.level)}
		v, err := r.engine.eval.Eval(b.Formula, vars)
		if err != nil {
			slog.Warn("stat bonus formula failed", "source", b.Source, "target", id, "error", err)
			continue
		}
		sum += v
	}
	return sum
}

func (r *resolution) shape(def Definition, value float64) float64 {
	switch def.Kind {
	case KindFormula:
		v, err := r.engine.eval.Eval(def.Formula, r.formulaVars(def.Formula, value))
		if err != nil {
			slog.Warn("stat formula failed", "subject", r.key, "stat", def.ID, "error", err)
		} else {
			value = v
		}
	case KindNative:
		if n, ok := r.subject.NativeStat(def.ID); ok {
			value = n
		}
	case KindProbability:
		value = math.Max(0, math.Min(100, value))
	case KindResource:
		value = math.Max(0, value)
	}

	if def.Domain == DomainInteger {
		value = math.Round(value)
	}
	return def.clamp(value)
}

// formulaVars binds value, level and every other identifier as a resolved stat.
func (r *resolution) formulaVars(expr string, value float64) map[string]float64 {
	idents := formula.Identifiers(expr)
	vars := make(map[string]float64, len(idents)+2)
	vars["value"] = value
	vars["level"] = float64(r.level)
	for _, name := range idents {
		if name == "value" || name == "level" {
			continue
		}
		vars[name] = r.resolve(name)
	}
	return vars
}
