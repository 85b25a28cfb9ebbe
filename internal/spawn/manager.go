package spawn

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/skillflow/internal/world"
)

// SpawnHook runs for every mob the manager spawns, including respawns.
type SpawnHook func(m *world.Mob, p *Point)

// Manager keeps spawn points populated: it spawns mobs into world.Mobs, tracks
// which point each mob came from and schedules respawns when they die.
type Manager struct {
	mobs    *world.Mobs
	respawn *RespawnTaskManager

	mu      sync.Mutex
	points  []*Point
	current map[int]int       // point id → alive mobs
	byMob   map[string]*Point // mob id → point
	hooks   []SpawnHook
}

// NewManager creates a manager and subscribes it to mob deaths.
func NewManager(mobs *world.Mobs) *Manager {
	m := &Manager{
		mobs:    mobs,
		current: make(map[int]int),
		byMob:   make(map[string]*Point),
	}
	m.respawn = NewRespawnTaskManager(m)
	mobs.OnDeath(m.onDeath)
	return m
}

// Respawns returns the respawn scheduler. Its Tick must be registered as a scheduler hook.
func (m *Manager) Respawns() *RespawnTaskManager {
	return m.respawn
}

// OnSpawn registers a hook.
func (m *Manager) OnSpawn(fn SpawnHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// AddPoint registers a spawn point and assigns its id.
func (m *Manager) AddPoint(p Point) *Point {
	m.mu.Lock()
	defer m.mu.Unlock()

	pt := &p
	pt.ID = len(m.points) + 1
	if pt.Maximum <= 0 {
		pt.Maximum = 1
	}
	m.points = append(m.points, pt)
	return pt
}

// Points returns the number of registered points.
func (m *Manager) Points() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

// Current returns the number of alive mobs of point id.
func (m *Manager) Current(pointID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[pointID]
}

// PointOf returns the point mobID was spawned from.
func (m *Manager) PointOf(mobID string) (*Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byMob[mobID]
	return p, ok
}

// SpawnAll fills every point up to its maximum. Failed spawns are joined into
// the error; the rest still spawn.
func (m *Manager) SpawnAll() ([]*world.Mob, error) {
	m.mu.Lock()
	points := append([]*Point(nil), m.points...)
	m.mu.Unlock()

	var (
		errs    []error
		spawned []*world.Mob
	)
	for _, p := range points {
		for m.Current(p.ID) < p.Maximum {
			mob, err := m.DoSpawn(p)
			if err != nil {
				slog.Error("failed to spawn mob",
					"point", p.ID,
					"template", p.Template.Name,
					"error", err)
				errs = append(errs, err)
				break
			}
			spawned = append(spawned, mob)
		}
	}

	slog.Info("all mobs spawned", "points", len(points), "count", len(spawned))
	return spawned, errors.Join(errs...)
}

// DoSpawn spawns one mob at p.
func (m *Manager) DoSpawn(p *Point) (*world.Mob, error) {
	if n := m.Current(p.ID); n >= p.Maximum {
		return nil, fmt.Errorf("spawn point %d is full (%d/%d)", p.ID, n, p.Maximum)
	}

	mob, err := m.mobs.Spawn(p.Template, p.Location, p.Forward)
	if err != nil {
		return nil, fmt.Errorf("spawning at point %d: %w", p.ID, err)
	}

	m.mu.Lock()
	m.current[p.ID]++
	m.byMob[mob.ID()] = p
	hooks := append([]SpawnHook(nil), m.hooks...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(mob, p)
	}
	return mob, nil
}

func (m *Manager) onDeath(mob *world.Mob, killerID string) {
	m.mu.Lock()
	p, ok := m.byMob[mob.ID()]
	if ok {
		delete(m.byMob, mob.ID())
		m.current[p.ID]--
	}
	m.mu.Unlock()

	if !ok || !p.Respawns() {
		return
	}
	delay := p.RespawnDelay()
	m.respawn.ScheduleRespawn(p, delay)

	slog.Debug("mob died, respawn scheduled",
		"mob", mob.ID(),
		"killer", killerID,
		"point", p.ID,
		"delay", delay)
}
