package skill

import (
	"maps"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

// TargetRef is a target held by id. ID is "" for ground points; Location is where
// the target was when it was selected.
type TargetRef struct {
	ID       string
	Location model.Location
}

// Context is the per-cast execution state.
//
// Snapshot is captured at cast time and shared read-only by every clone, so stat
// changes mid-cast never alter what the cast already resolved. Caster and targets
// are kept as subject ids and looked up through the Runtime on every use.
// Targets, Locations and Vars are owned by this context and copied on Clone.
type Context struct {
	ID        uuid.UUID
	AbilityID string
	Caster    string // subject id, "" for casterless casts
	Snapshot  *stat.Snapshot
	Origin    model.Location
	// FixedOrigin pins retargeting to Origin instead of the caster's current location
	// (projectile impacts, ground casts).
	FixedOrigin bool

	Targets   []TargetRef
	Locations []model.Location
	Vars      map[string]any
}

// NewContext creates a context for a cast by casterID from origin.
func NewContext(abilityID, casterID string, snap *stat.Snapshot, origin model.Location) *Context {
	return &Context{
		ID:        uuid.New(),
		AbilityID: abilityID,
		Caster:    casterID,
		Snapshot:  snap,
		Origin:    origin,
		Vars:      make(map[string]any, 4),
	}
}

// Clone copies the mutable parts and shares the snapshot. The clone gets a new id.
func (c *Context) Clone() *Context {
	return &Context{
		ID:          uuid.New(),
		AbilityID:   c.AbilityID,
		Caster:      c.Caster,
		Snapshot:    c.Snapshot,
		Origin:      c.Origin,
		FixedOrigin: c.FixedOrigin,
		Targets:     slices.Clone(c.Targets),
		Locations:   slices.Clone(c.Locations),
		Vars:        maps.Clone(c.Vars),
	}
}

// CasterID returns the caster id, or "" for casterless contexts.
func (c *Context) CasterID() string {
	return c.Caster
}

// SetTargets replaces targets and locations with a targeting result.
func (c *Context) SetTargets(res targeting.Result) {
	c.Targets = make([]TargetRef, 0, len(res.Targets))
	c.AddTargets(res.Targets...)
	c.Locations = res.Locations
}

// AddTargets appends targets by id.
func (c *Context) AddTargets(ts ...targeting.Target) {
	for _, t := range ts {
		c.Targets = append(c.Targets, TargetRef{ID: t.ID(), Location: t.Location})
	}
}

// ClearTargets drops targets and locations.
func (c *Context) ClearTargets() {
	c.Targets = nil
	c.Locations = nil
}

// TargetIDs returns the subject ids of the current targets. Ground points are skipped.
func (c *Context) TargetIDs() []string {
	ids := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// CasterStat returns a value from the cast snapshot.
func (c *Context) CasterStat(id string) float64 {
	return c.Snapshot.Value(id)
}

// Var returns a variable.
func (c *Context) Var(name string) (any, bool) {
	v, ok := c.Vars[name]
	return v, ok
}

// SetVar sets a variable. nil deletes it.
func (c *Context) SetVar(name string, v any) {
	if v == nil {
		delete(c.Vars, name)
		return
	}
	if c.Vars == nil {
		c.Vars = make(map[string]any, 4)
	}
	c.Vars[name] = v
}

// Float returns a numeric variable; strings are parsed, anything else is 0.
func (c *Context) Float(name string) float64 {
	switch x := c.Vars[name].(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case bool:
		if x {
			return 1
		}
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// targetingOrigin returns the point of view for retargeting. A caster that no
// longer resolves leaves the origin casterless.
func (c *Context) targetingOrigin(rt *Runtime) targeting.Origin {
	o := targeting.Origin{Location: c.Origin}
	if s, ok := rt.Subject(c.Caster); ok {
		o.Caster = s
	}
	if c.FixedOrigin || c.Caster == "" || rt.World == nil {
		return o
	}
	if loc, ok := rt.World.Locate(c.Caster); ok {
		o.Location = loc
	}
	return o
}
