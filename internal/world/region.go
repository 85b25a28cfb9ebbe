package world

import (
	"sync"
	"sync/atomic"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
)

// placed is one subject on the grid.
type placed struct {
	subject  stat.Subject
	location model.Location
	forward  model.Vector
	cell     cellKey
}

// Cell holds the subjects currently inside one grid square.
// Reads go through an immutable snapshot rebuilt lazily after a change.
type Cell struct {
	key cellKey

	members sync.Map // map[string]*placed

	snapshotCache atomic.Value // []*placed
	snapshotDirty atomic.Bool

	version atomic.Uint64
}

func newCell(k cellKey) *Cell {
	return &Cell{key: k}
}

// Version is bumped on every add and remove.
func (c *Cell) Version() uint64 {
	return c.version.Load()
}

func (c *Cell) add(p *placed) {
	c.members.Store(p.subject.ID(), p)
	c.version.Add(1)
	c.snapshotDirty.Store(true)
}

func (c *Cell) remove(id string) {
	c.members.Delete(id)
	c.version.Add(1)
	c.snapshotDirty.Store(true)
}

// snapshot returns the members. The slice must not be modified.
func (c *Cell) snapshot() []*placed {
	if !c.snapshotDirty.Load() {
		if cache := c.snapshotCache.Load(); cache != nil {
			return cache.([]*placed)
		}
	}
	return c.rebuildSnapshot()
}

func (c *Cell) rebuildSnapshot() []*placed {
	members := make([]*placed, 0, 8)
	c.members.Range(func(_, value any) bool {
		members = append(members, value.(*placed))
		return true
	})

	c.snapshotCache.Store(members)
	c.snapshotDirty.Store(false)
	return members
}

// Len returns the number of members (O(N)).
func (c *Cell) Len() int {
	return len(c.snapshot())
}
