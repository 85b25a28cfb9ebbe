// Package profile holds durable subjects: player profiles that live in storage,
// load asynchronously and are written back by explicit flushes.
package profile

import (
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/skillflow/internal/stat"
)

// ErrNotFound is returned by repositories for unknown profile ids.
var ErrNotFound = errors.New("profile not found")

// Record is the storage form of a profile.
type Record struct {
	ID        string
	Name      string
	Level     int
	Stats     map[string]float64
	Roles     []stat.RoleAssignment
	Equipment map[string]float64
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Stats = maps.Clone(r.Stats)
	r.Roles = slices.Clone(r.Roles)
	r.Equipment = maps.Clone(r.Equipment)
	return r
}

// Profile is a stat.Subject backed by a Record. Until its record is applied it
// reports not ready and resolves to zero everywhere.
type Profile struct {
	id string

	mu        sync.RWMutex
	name      string
	level     int
	stats     map[string]float64
	roles     []stat.RoleAssignment
	equipment map[string]float64

	ready atomic.Bool
	dirty atomic.Bool

	// onChange is called after a mutation with rolesChanged set when the role
	// list or level changed.
	onChange func(p *Profile, rolesChanged bool)
}

var (
	_ stat.Subject         = (*Profile)(nil)
	_ stat.Leveled         = (*Profile)(nil)
	_ stat.RoleHolder      = (*Profile)(nil)
	_ stat.EquipmentHolder = (*Profile)(nil)
	_ stat.Availability    = (*Profile)(nil)
)

func newProfile(id string) *Profile {
	return &Profile{
		id:        id,
		name:      id,
		level:     1,
		stats:     map[string]float64{},
		equipment: map[string]float64{},
	}
}

// ID implements stat.Subject.
func (p *Profile) ID() string { return p.id }

// DisplayName implements stat.Subject.
func (p *Profile) DisplayName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// RawStat implements stat.Subject.
func (p *Profile) RawStat(id string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.stats[id]
	return v, ok
}

// NativeStat implements stat.Subject. Profiles have no host attributes; the
// avatar adapter owns those.
func (p *Profile) NativeStat(string) (float64, bool) {
	return 0, false
}

// Level implements stat.Leveled.
func (p *Profile) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// Roles implements stat.RoleHolder.
func (p *Profile) Roles() []stat.RoleAssignment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.roles)
}

// EquipmentStat implements stat.EquipmentHolder.
func (p *Profile) EquipmentStat(id string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equipment[id]
}

// Ready implements stat.Availability.
func (p *Profile) Ready() bool { return p.ready.Load() }

// Dirty reports unsaved changes.
func (p *Profile) Dirty() bool { return p.dirty.Load() }

// SetLevel changes the level.
func (p *Profile) SetLevel(level int) {
	if level < 1 {
		level = 1
	}
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
	p.changed(true)
}

// SetStat stores a base stat value.
func (p *Profile) SetStat(id string, v float64) {
	p.mu.Lock()
	p.stats[id] = v
	p.mu.Unlock()
	p.changed(false)
}

// SetRoles replaces the role assignments.
func (p *Profile) SetRoles(roles []stat.RoleAssignment) {
	p.mu.Lock()
	p.roles = slices.Clone(roles)
	p.mu.Unlock()
	p.changed(true)
}

// SetEquipment replaces the equipment contribution of one stat. Zero removes it.
func (p *Profile) SetEquipment(id string, v float64) {
	p.mu.Lock()
	if v == 0 {
		delete(p.equipment, id)
	} else {
		p.equipment[id] = v
	}
	p.mu.Unlock()
	p.changed(false)
}

func (p *Profile) changed(rolesChanged bool) {
	p.dirty.Store(true)
	if p.onChange != nil {
		p.onChange(p, rolesChanged)
	}
}

// Record returns the storage form.
func (p *Profile) Record() Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Record{
		ID:        p.id,
		Name:      p.name,
		Level:     p.level,
		Stats:     maps.Clone(p.stats),
		Roles:     slices.Clone(p.roles),
		Equipment: maps.Clone(p.equipment),
	}
}

// apply replaces the profile state with r and marks it ready.
func (p *Profile) apply(r Record) {
	r = r.Clone()
	if r.Stats == nil {
		r.Stats = map[string]float64{}
	}
	if r.Equipment == nil {
		r.Equipment = map[string]float64{}
	}
	if r.Level < 1 {
		r.Level = 1
	}
	if r.Name == "" {
		r.Name = p.id
	}

	p.mu.Lock()
	p.name = r.Name
	p.level = r.Level
	p.stats = r.Stats
	p.roles = r.Roles
	p.equipment = r.Equipment
	p.mu.Unlock()

	p.ready.Store(true)
}
