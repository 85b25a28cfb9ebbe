package spawn

import (
	"context"
	"log/slog"
	"sync"
)

// RespawnTask represents a scheduled respawn.
type RespawnTask struct {
	Point *Point
	// Remaining ticks before the respawn fires.
	Remaining int
}

// RespawnTaskManager counts respawn delays down in simulation ticks.
type RespawnTaskManager struct {
	spawns *Manager

	mu    sync.Mutex
	tasks []*RespawnTask
}

// NewRespawnTaskManager creates new respawn task manager
func NewRespawnTaskManager(spawns *Manager) *RespawnTaskManager {
	return &RespawnTaskManager{spawns: spawns}
}

// ScheduleRespawn schedules a respawn at p after delay ticks. One task is queued
// per dead mob.
func (r *RespawnTaskManager) ScheduleRespawn(p *Point, delay int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, &RespawnTask{Point: p, Remaining: max(delay, 1)})
}

// CancelRespawns drops every task scheduled for point id and returns how many.
func (r *RespawnTaskManager) CancelRespawns(pointID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.tasks[:0]
	for _, t := range r.tasks {
		if t.Point.ID != pointID {
			kept = append(kept, t)
		}
	}
	n := len(r.tasks) - len(kept)
	clear(r.tasks[len(kept):])
	r.tasks = kept
	return n
}

// Tick counts every task down and respawns the due ones. It has the skill.TickHook signature.
func (r *RespawnTaskManager) Tick(_ context.Context, tick uint64) {
	r.mu.Lock()
	var due []*RespawnTask
	kept := r.tasks[:0]
	for _, t := range r.tasks {
		t.Remaining--
		if t.Remaining <= 0 {
			due = append(due, t)
			continue
		}
		kept = append(kept, t)
	}
	clear(r.tasks[len(kept):])
	r.tasks = kept
	r.mu.Unlock()

	// Spawn outside the lock: spawn hooks may schedule or cancel.
	for _, t := range due {
		p := t.Point
		if r.spawns.Current(p.ID) >= p.Maximum {
			slog.Debug("respawn skipped (spawn full)", "point", p.ID, "maximum", p.Maximum)
			continue
		}
		mob, err := r.spawns.DoSpawn(p)
		if err != nil {
			slog.Error("respawn failed", "point", p.ID, "template", p.Template.Name, "error", err)
			continue
		}
		slog.Info("mob respawned", "mob", mob.ID(), "name", mob.DisplayName(), "point", p.ID, "tick", tick)
	}
}

// TaskCount returns number of scheduled respawn tasks
func (r *RespawnTaskManager) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
