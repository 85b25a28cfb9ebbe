package ai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// TickManager manages AI ticks for all registered mobs.
// It does not own a ticker: Tick is registered as a scheduler hook so AI runs
// on the simulation goroutine before instances are stepped. Controllers tick
// in subject id order.
type TickManager struct {
	controllers     sync.Map // subject id -> Controller
	controllerCount atomic.Int32

	mu    sync.Mutex
	order []string // sorted subject ids
}

// NewTickManager creates new AI tick manager
func NewTickManager() *TickManager {
	return &TickManager{}
}

// Register registers AI controller for a mob, replacing any previous one.
func (m *TickManager) Register(id string, controller Controller) {
	if prev, loaded := m.controllers.Swap(id, controller); loaded {
		prev.(Controller).Stop()
	} else {
		m.controllerCount.Add(1)
		m.mu.Lock()
		if i, found := slices.BinarySearch(m.order, id); !found {
			m.order = slices.Insert(m.order, i, id)
		}
		m.mu.Unlock()
	}
	controller.Start()

	slog.Debug("AI controller registered",
		"subject", id,
		"intention", controller.CurrentIntention())
}

// Unregister unregisters AI controller
func (m *TickManager) Unregister(id string) {
	value, ok := m.controllers.LoadAndDelete(id)
	if !ok {
		return
	}
	m.controllerCount.Add(-1)
	m.mu.Lock()
	if i, found := slices.BinarySearch(m.order, id); found {
		m.order = slices.Delete(m.order, i, i+1)
	}
	m.mu.Unlock()
	value.(Controller).Stop()

	slog.Debug("AI controller unregistered", "subject", id)
}

// Tick ticks all registered controllers. It has the skill.TickHook signature.
// A controller unregistered by an earlier one in the same tick is skipped.
func (m *TickManager) Tick(_ context.Context, tick uint64) {
	m.mu.Lock()
	ids := slices.Clone(m.order)
	m.mu.Unlock()

	count := 0
	for _, id := range ids {
		value, ok := m.controllers.Load(id)
		if !ok {
			continue
		}
		value.(Controller).Tick(tick)
		count++
	}

	if count > 0 && IsDebugEnabled() {
		slog.Debug("AI tick completed", "tick", tick, "controllers", count)
	}
}

// Count returns number of registered controllers (O(1) cached count)
func (m *TickManager) Count() int {
	return int(m.controllerCount.Load())
}

// GetController returns controller for a mob
func (m *TickManager) GetController(id string) (Controller, error) {
	value, ok := m.controllers.Load(id)
	if !ok {
		return nil, fmt.Errorf("controller not found for subject %s", id)
	}
	return value.(Controller), nil
}
