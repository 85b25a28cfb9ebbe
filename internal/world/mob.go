package world

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/skill"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

// DefaultHealthStat is the stat a mob's maximum health is resolved from.
const DefaultHealthStat = "maxHealth"

// MobTemplate describes a spawnable mob.
type MobTemplate struct {
	Name       string
	Level      int
	Stats      map[string]float64
	Roles      []stat.RoleAssignment
	HealthStat string
	// Abilities are cast by the mob's AI in order of preference.
	Abilities []string
}

// Mob is a transient subject living as an ECS component.
// Base stats and roles are fixed at spawn.
type Mob struct {
	id     string
	entity ecs.EntityID
	name   string
	level  int
	stats  map[string]float64
	roles  []stat.RoleAssignment
	skills []string
}

func (m *Mob) ID() string                   { return m.id }
func (m *Mob) DisplayName() string          { return m.name }
func (m *Mob) Level() int                   { return m.level }
func (m *Mob) Entity() ecs.EntityID         { return m.entity }
func (m *Mob) Roles() []stat.RoleAssignment { return m.roles }
func (m *Mob) Abilities() []string          { return m.skills }

func (m *Mob) RawStat(id string) (float64, bool) {
	v, ok := m.stats[id]
	return v, ok
}

// NativeStat reports nothing: mobs have no host-owned attributes.
func (m *Mob) NativeStat(string) (float64, bool) {
	return 0, false
}

// Health is the displayed health of a mob.
type Health struct {
	Current float64
	Max     float64
}

// Dead reports whether current health reached zero.
func (h *Health) Dead() bool {
	return h.Current <= 0
}

// DeathHook runs after a mob's health reaches zero, before it is despawned.
type DeathHook func(m *Mob, killerID string)

// Mobs spawns mobs into the shared ECS world and the grid, and receives the
// damage pipeline's results for them. Damage to anything else goes to Fallback.
type Mobs struct {
	world *ecs.World
	grid  *Grid
	stats *stat.Engine
	ids   *IDGenerator

	// Fallback receives damage and heals for non-mob targets. May be nil.
	Fallback skill.DamageSink

	mu     sync.RWMutex
	byID   map[string]ecs.EntityID
	deaths []DeathHook
}

var (
	_ skill.DamageSink         = (*Mobs)(nil)
	_ targeting.ThreatProvider = (*Mobs)(nil)
)

// NewMobs creates a mob registry. stats may be nil; max health then comes from
// the template's raw stat.
func NewMobs(w *ecs.World, grid *Grid, stats *stat.Engine) *Mobs {
	return &Mobs{
		world: w,
		grid:  grid,
		stats: stats,
		ids:   NewIDGenerator(),
		byID:  make(map[string]ecs.EntityID, 64),
	}
}

// OnDeath registers a hook.
func (ms *Mobs) OnDeath(fn DeathHook) {
	ms.mu.Lock()
	ms.deaths = append(ms.deaths, fn)
	ms.mu.Unlock()
}

// Spawn creates a mob from t at loc.
func (ms *Mobs) Spawn(t MobTemplate, loc model.Location, forward model.Vector) (*Mob, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("spawn: template without name")
	}
	level := t.Level
	if level <= 0 {
		level = 1
	}

	id := ms.world.Create()
	m := &Mob{
		id:     ms.ids.NextMobID(),
		entity: id,
		name:   t.Name,
		level:  level,
		stats:  maps.Clone(t.Stats),
		roles:  slices.Clone(t.Roles),
		skills: slices.Clone(t.Abilities),
	}
	if m.stats == nil {
		m.stats = map[string]float64{}
	}

	healthStat := t.HealthStat
	if healthStat == "" {
		healthStat = DefaultHealthStat
	}
	maxHealth := m.stats[healthStat]
	if ms.stats != nil {
		maxHealth = ms.stats.Resolve(m, healthStat)
	}
	if maxHealth <= 0 {
		maxHealth = 1
	}

	ecs.Add(ms.world, id, m)
	ecs.Add(ms.world, id, &Health{Current: maxHealth, Max: maxHealth})
	ecs.Add(ms.world, id, NewAggroList())

	if err := ms.grid.Place(m, loc, forward); err != nil {
		ms.world.Remove(id)
		return nil, fmt.Errorf("spawn %s: %w", t.Name, err)
	}

	ms.mu.Lock()
	ms.byID[m.id] = id
	ms.mu.Unlock()

	slog.Debug("mob spawned", "mob", m.id, "name", m.name, "level", level, "health", maxHealth)
	return m, nil
}

// Despawn removes a mob from the world, the grid and the stat cache.
func (ms *Mobs) Despawn(mobID string) bool {
	ms.mu.Lock()
	id, ok := ms.byID[mobID]
	delete(ms.byID, mobID)
	ms.mu.Unlock()
	if !ok {
		return false
	}

	ms.grid.Remove(mobID)
	ms.world.Remove(id)
	if ms.stats != nil {
		ms.stats.Invalidate(mobID)
	}
	return true
}

// Mob returns a live mob by subject id.
func (ms *Mobs) Mob(mobID string) (*Mob, bool) {
	id, ok := ms.entity(mobID)
	if !ok {
		return nil, false
	}
	return ecs.Get[*Mob](ms.world, id)
}

// Health returns a copy of the mob's health.
func (ms *Mobs) Health(mobID string) (Health, bool) {
	id, ok := ms.entity(mobID)
	if !ok {
		return Health{}, false
	}
	h, ok := ecs.Get[*Health](ms.world, id)
	if !ok {
		return Health{}, false
	}
	return *h, true
}

// Count returns the number of live mobs.
func (ms *Mobs) Count() int {
	return ecs.CountWith[*Mob](ms.world)
}

func (ms *Mobs) entity(mobID string) (ecs.EntityID, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	id, ok := ms.byID[mobID]
	return id, ok
}

// ApplyDamage implements skill.DamageSink.
func (ms *Mobs) ApplyDamage(c *skill.Context, target targeting.Target, amount float64, critical bool) {
	id, ok := ms.entity(target.ID())
	if !ok {
		if ms.Fallback != nil {
			ms.Fallback.ApplyDamage(c, target, amount, critical)
		}
		return
	}
	h, ok := ecs.Get[*Health](ms.world, id)
	if !ok || h.Dead() {
		return
	}

	attacker := c.CasterID()
	if aggro, ok := ecs.Get[*AggroList](ms.world, id); ok {
		aggro.Add(attacker, amount)
	}

	h.Current = max(h.Current-amount, 0)
	if !h.Dead() {
		return
	}

	m, _ := ecs.Get[*Mob](ms.world, id)
	slog.Info("mob killed", "mob", target.ID(), "killer", attacker, "ability", c.AbilityID, "critical", critical)

	ms.mu.RLock()
	hooks := slices.Clone(ms.deaths)
	ms.mu.RUnlock()
	for _, fn := range hooks {
		fn(m, attacker)
	}
	ms.Despawn(target.ID())
}

// ApplyHeal implements skill.DamageSink. Health never exceeds Max.
func (ms *Mobs) ApplyHeal(c *skill.Context, target targeting.Target, amount float64) {
	id, ok := ms.entity(target.ID())
	if !ok {
		if ms.Fallback != nil {
			ms.Fallback.ApplyHeal(c, target, amount)
		}
		return
	}
	if h, ok := ecs.Get[*Health](ms.world, id); ok && !h.Dead() {
		h.Current = min(h.Current+amount, h.Max)
	}
}

// Threat implements targeting.ThreatProvider: the hate targetID has drawn from
// the mob casterID.
func (ms *Mobs) Threat(casterID, targetID string) float64 {
	id, ok := ms.entity(casterID)
	if !ok {
		return 0
	}
	aggro, ok := ecs.Get[*AggroList](ms.world, id)
	if !ok {
		return 0
	}
	return aggro.Hate(targetID)
}

// MostHated returns the attacker with the highest hate toward mobID.
func (ms *Mobs) MostHated(mobID string) (string, bool) {
	id, ok := ms.entity(mobID)
	if !ok {
		return "", false
	}
	aggro, ok := ecs.Get[*AggroList](ms.world, id)
	if !ok {
		return "", false
	}
	return aggro.MostHated()
}
