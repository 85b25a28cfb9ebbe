package spawn

import (
	"math/rand/v2"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/world"
)

// Point is a spawn location that keeps up to Maximum mobs of one template alive.
// Counters are owned by the Manager.
type Point struct {
	ID       int
	Template world.MobTemplate
	Location model.Location
	Forward  model.Vector
	Maximum  int

	// RespawnMin..RespawnMax is the respawn delay in ticks. Zero disables respawn.
	RespawnMin int
	RespawnMax int
}

// Respawns reports whether dead mobs of this point come back.
func (p *Point) Respawns() bool {
	return p.RespawnMax > 0
}

// RespawnDelay returns a random delay between RespawnMin and RespawnMax (in ticks).
func (p *Point) RespawnDelay() int {
	lo, hi := p.RespawnMin, p.RespawnMax
	if hi < lo {
		hi = lo
	}
	if lo == hi {
		return lo
	}
	return lo + rand.IntN(hi-lo+1)
}
