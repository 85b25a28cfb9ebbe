package targeting

import (
	"fmt"
	"math"
	"strings"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
)

// Shape selects raw candidates around an origin.
type Shape interface {
	Select(w World, o Origin) Result
}

// Self targets the caster itself.
type Self struct{}

func (Self) Select(_ World, o Origin) Result {
	r := Result{Locations: []model.Location{o.Location}}
	if o.Caster != nil {
		r.Targets = []Target{{Subject: o.Caster, Location: o.Location}}
	}
	return r
}

// Radius selects subjects within Radius of the origin.
type Radius struct {
	Radius      float64
	IncludeSelf bool
}

func (s Radius) Select(w World, o Origin) Result {
	return Result{
		Targets:   around(w, o, s.Radius, 0, s.IncludeSelf),
		Locations: []model.Location{o.Location},
	}
}

// Annulus selects subjects with Inner <= distance <= Outer.
type Annulus struct {
	Inner float64
	Outer float64
}

func (s Annulus) Select(w World, o Origin) Result {
	return Result{
		Targets:   around(w, o, s.Outer, s.Inner, false),
		Locations: []model.Location{o.Location},
	}
}

// Cone selects subjects within Range whose bearing deviates from the caster's
// forward direction by at most HalfAngle degrees.
type Cone struct {
	Range     float64
	HalfAngle float64
}

func (s Cone) Select(w World, o Origin) Result {
	fwd := forwardOf(w, o)
	candidates := around(w, o, s.Range, 0, false)
	out := candidates[:0]
	for _, t := range candidates {
		dir := t.Location.Sub(o.Location)
		// a subject standing on the origin is inside any cone
		if dir.Length() == 0 || fwd.AngleTo(dir) <= s.HalfAngle {
			out = append(out, t)
		}
	}
	return Result{Targets: out, Locations: []model.Location{o.Location}}
}

// Ray selects the first subject along the forward direction, stopping at the
// first obstruction. Width is the hit radius around the ray line.
type Ray struct {
	Range float64
	Width float64
}

func (s Ray) Select(w World, o Origin) Result {
	if w == nil {
		return Result{Locations: []model.Location{o.Location}}
	}
	fwd := forwardOf(w, o)
	end := w.RayTrace(o.Location, fwd, s.Range)
	reach := end.Distance(o.Location)

	var (
		hit     *Target
		hitDist = math.Inf(1)
	)
	for _, t := range around(w, o, s.Range, 0, false) {
		along := t.Location.Sub(o.Location).Dot(fwd)
		if along < 0 || along > reach {
			continue
		}
		perp := t.Location.Distance(o.Location.Add(fwd.Scale(along)))
		if perp > s.Width {
			continue
		}
		if along < hitDist {
			tt := t
			hit, hitDist = &tt, along
		}
	}

	if hit == nil {
		return Result{Locations: []model.Location{end}}
	}
	return Result{Targets: []Target{*hit}, Locations: []model.Location{hit.Location}}
}

// around queries the world and drops the caster (unless includeSelf) and anything
// closer than inner. Result order follows the world's answer.
func around(w World, o Origin, outer, inner float64, includeSelf bool) []Target {
	if w == nil || outer <= 0 {
		return nil
	}
	casterID := o.CasterID()
	innerSq := inner * inner
	outerSq := outer * outer
	found := w.SubjectsWithin(o.Location, outer)
	out := make([]Target, 0, len(found))
	for _, t := range found {
		if !includeSelf && casterID != "" && t.ID() == casterID {
			continue
		}
		d := t.Location.DistanceSquared(o.Location)
		if d > outerSq || d < innerSq {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ShapeKinds lists the keys NewShape understands.
var ShapeKinds = []string{"self", "radius", "cone", "ray", "annulus"}

// NewShape builds a shape from its config node.
//
//	radius:  radius, include_self
//	cone:    range, angle (half-angle in degrees)
//	ray:     range, width
//	annulus: inner, outer
func NewShape(kind string, p params.Tree) (Shape, error) {
	switch strings.ToLower(kind) {
	case "self", "":
		return Self{}, nil
	case "radius", "sphere", "area":
		r := p.Float("radius", 0)
		if r <= 0 {
			return nil, fmt.Errorf("radius shape: radius must be positive, got %v", r)
		}
		return Radius{Radius: r, IncludeSelf: p.Bool("include_self", false)}, nil
	case "cone":
		r := p.Float("range", p.Float("radius", 0))
		angle := p.Float("angle", 45)
		if r <= 0 || angle <= 0 || angle > 180 {
			return nil, fmt.Errorf("cone shape: bad range %v or angle %v", r, angle)
		}
		return Cone{Range: r, HalfAngle: angle}, nil
	case "ray", "line":
		r := p.Float("range", 0)
		if r <= 0 {
			return nil, fmt.Errorf("ray shape: range must be positive, got %v", r)
		}
		return Ray{Range: r, Width: p.Float("width", 0.5)}, nil
	case "annulus", "ring":
		inner, outer := p.Float("inner", 0), p.Float("outer", 0)
		if outer <= 0 || inner < 0 || inner > outer {
			return nil, fmt.Errorf("annulus shape: bad radii %v..%v", inner, outer)
		}
		return Annulus{Inner: inner, Outer: outer}, nil
	}
	return nil, fmt.Errorf("unknown shape %q (known: %s)", kind, strings.Join(ShapeKinds, ", "))
}
