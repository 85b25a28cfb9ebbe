// Package world is the host side of targeting: a spatial grid of subjects, static
// obstructions for ray traces, and transient mobs stored as ECS components.
package world

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

// ErrInvalidSubject is returned when placing a nil subject or one without an id.
var ErrInvalidSubject = errors.New("invalid subject")

// Grid is a uniform spatial hash over the X/Y plane. It implements targeting.World.
type Grid struct {
	cellSize float64

	mu       sync.RWMutex
	cells    map[cellKey]*Cell
	subjects map[string]*placed
	blocked  map[cellKey]struct{}
}

var _ targeting.World = (*Grid)(nil)

// NewGrid creates an empty grid. cellSize <= 0 selects DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]*Cell, 64),
		subjects: make(map[string]*placed, 256),
		blocked:  make(map[cellKey]struct{}),
	}
}

// CellSize returns the cell edge length.
func (g *Grid) CellSize() float64 {
	return g.cellSize
}

// Place puts s on the grid, replacing any previous placement of the same id.
func (g *Grid) Place(s stat.Subject, loc model.Location, forward model.Vector) error {
	if s == nil || s.ID() == "" {
		return fmt.Errorf("placing subject: %w", ErrInvalidSubject)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.placeLocked(&placed{subject: s, location: loc, forward: forward})
	return nil
}

func (g *Grid) placeLocked(p *placed) {
	id := p.subject.ID()
	if old, ok := g.subjects[id]; ok {
		g.cells[old.cell].remove(id)
	}

	p.cell = cellOf(p.location.X, p.location.Y, g.cellSize)
	cell, ok := g.cells[p.cell]
	if !ok {
		cell = newCell(p.cell)
		g.cells[p.cell] = cell
	}
	cell.add(p)
	g.subjects[id] = p
}

// Move relocates a placed subject. Returns false for unknown ids.
func (g *Grid) Move(id string, loc model.Location) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.subjects[id]
	if !ok {
		return false
	}
	g.placeLocked(&placed{subject: old.subject, location: loc, forward: old.forward})
	return true
}

// Face sets the facing of a placed subject. Returns false for unknown ids.
func (g *Grid) Face(id string, forward model.Vector) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.subjects[id]
	if !ok {
		return false
	}
	g.placeLocked(&placed{subject: old.subject, location: old.location, forward: forward})
	return true
}

// Remove takes a subject off the grid.
func (g *Grid) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.subjects[id]
	if !ok {
		return false
	}
	g.cells[p.cell].remove(id)
	delete(g.subjects, id)
	return true
}

// Subject returns the placed subject with id.
func (g *Grid) Subject(id string) (stat.Subject, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.subjects[id]
	if !ok {
		return nil, false
	}
	return p.subject, true
}

// Count returns the number of placed subjects.
func (g *Grid) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subjects)
}

// Locate implements targeting.World.
func (g *Grid) Locate(id string) (model.Location, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.subjects[id]
	if !ok {
		return model.Location{}, false
	}
	return p.location, true
}

// Forward implements targeting.World. A zero facing reports false.
func (g *Grid) Forward(id string) (model.Vector, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.subjects[id]
	if !ok || p.forward.Length() == 0 {
		return model.Vector{}, false
	}
	return p.forward.Normalize(), true
}

// SubjectsWithin implements targeting.World. Results are ordered by subject id.
func (g *Grid) SubjectsWithin(center model.Location, radius float64) []targeting.Target {
	if radius < 0 {
		return nil
	}
	r2 := radius * radius

	g.mu.RLock()
	var out []targeting.Target
	for _, k := range cellsAround(center.X, center.Y, radius, g.cellSize) {
		cell, ok := g.cells[k]
		if !ok {
			continue
		}
		for _, p := range cell.snapshot() {
			if p.location.DistanceSquared(center) <= r2 {
				out = append(out, targeting.Target{Subject: p.subject, Location: p.location})
			}
		}
	}
	g.mu.RUnlock()

	slices.SortFunc(out, func(a, b targeting.Target) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// Block marks the cell containing loc as an obstruction for ray traces.
func (g *Grid) Block(loc model.Location) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blocked[cellOf(loc.X, loc.Y, g.cellSize)] = struct{}{}
}

// Unblock clears the obstruction at loc.
func (g *Grid) Unblock(loc model.Location) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.blocked, cellOf(loc.X, loc.Y, g.cellSize))
}

// Blocked reports whether loc lies in an obstructed cell.
func (g *Grid) Blocked(loc model.Location) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.blocked[cellOf(loc.X, loc.Y, g.cellSize)]
	return ok
}

// RayTrace implements targeting.World. The ray marches in quarter-cell steps and
// stops at the last free sample before an obstructed cell. The starting cell is
// never treated as an obstruction.
func (g *Grid) RayTrace(from model.Location, dir model.Vector, maxDistance float64) model.Location {
	if maxDistance <= 0 || dir.Length() == 0 {
		return from
	}
	dir = dir.Normalize()
	step := g.cellSize / 4
	start := cellOf(from.X, from.Y, g.cellSize)

	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.blocked) == 0 {
		return from.Add(dir.Scale(maxDistance))
	}

	prev := 0.0
	for t := step; ; t += step {
		if t > maxDistance {
			t = maxDistance
		}
		p := from.Add(dir.Scale(t))
		k := cellOf(p.X, p.Y, g.cellSize)
		if _, hit := g.blocked[k]; hit && k != start {
			return from.Add(dir.Scale(prev))
		}
		if t >= maxDistance {
			return p
		}
		prev = t
	}
}
