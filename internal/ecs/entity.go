package ecs

import "sync/atomic"

// EntityID is an opaque entity handle. Zero is never issued.
type EntityID uint32

// InvalidEntity is the zero handle.
const InvalidEntity EntityID = 0

// idGenerator hands out monotonically increasing entity ids.
// Ids are never reused within a World, so a stale id stored in another
// component can never resolve to a newer entity.
type idGenerator struct {
	next atomic.Uint32
}

func (g *idGenerator) nextID() EntityID {
	return EntityID(g.next.Add(1))
}
