// Package targeting resolves where an ability step lands.
//
// A Targeter runs a fixed pipeline: shape → filters → sort → limit. Shapes ask the
// host World for spatial data; they never hold references to host objects between
// calls.
package targeting

import (
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
)

// World is the host's spatial capability set.
type World interface {
	// SubjectsWithin returns every subject whose location is within radius of center.
	SubjectsWithin(center model.Location, radius float64) []Target
	// Forward returns the facing direction of the subject.
	Forward(subjectID string) (model.Vector, bool)
	// Locate returns the current location of the subject.
	Locate(subjectID string) (model.Location, bool)
	// RayTrace returns the point where a ray from `from` along dir stops: the first
	// obstruction or from+dir*maxDistance.
	RayTrace(from model.Location, dir model.Vector, maxDistance float64) model.Location
}

// Target is a subject at a location. Subject is nil for pure ground points.
type Target struct {
	Subject  stat.Subject
	Location model.Location
}

// ID returns the subject id or "" for ground targets.
func (t Target) ID() string {
	if t.Subject == nil {
		return ""
	}
	return t.Subject.ID()
}

// Origin is the point of view a shape is evaluated from.
type Origin struct {
	Caster   stat.Subject
	Location model.Location
	Forward  model.Vector // zero means "ask World.Forward for Caster"
}

// CasterID returns the caster id or "".
func (o Origin) CasterID() string {
	if o.Caster == nil {
		return ""
	}
	return o.Caster.ID()
}

// Result is what a shape or targeter produced.
// Locations is non-empty even when no subject matched so ground abilities keep a point.
type Result struct {
	Targets   []Target
	Locations []model.Location
}

// Empty reports whether the result holds neither targets nor locations.
func (r Result) Empty() bool {
	return len(r.Targets) == 0 && len(r.Locations) == 0
}

func forwardOf(w World, o Origin) model.Vector {
	if o.Forward.Length() > 0 {
		return o.Forward.Normalize()
	}
	if o.Caster != nil && w != nil {
		if f, ok := w.Forward(o.Caster.ID()); ok {
			return f.Normalize()
		}
	}
	return model.Vector{X: 1}
}
