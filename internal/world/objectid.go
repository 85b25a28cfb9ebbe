package world

import (
	"strconv"
	"sync/atomic"
)

// MobIDPrefix marks subject ids owned by the mob registry.
// Profile ids are uuids and never collide with it.
const MobIDPrefix = "mob-"

// IDGenerator hands out unique mob subject ids.
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator creates a generator starting at 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// NextMobID returns the next mob id, e.g. "mob-17".
func (g *IDGenerator) NextMobID() string {
	return MobIDPrefix + strconv.FormatUint(g.next.Add(1), 10)
}

// IsMobID reports whether id was produced by an IDGenerator.
func IsMobID(id string) bool {
	return len(id) > len(MobIDPrefix) && id[:len(MobIDPrefix)] == MobIDPrefix
}
