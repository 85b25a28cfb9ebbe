package skill

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/udisondev/skillflow/internal/stat"
)

// DefaultBuffLimit is the per-subject cap on simultaneous buffs.
const DefaultBuffLimit = 24

// Buff is a timed additive stat modifier.
type Buff struct {
	Source string // ability id
	Group  string // stacking group
	Level  int
	Stat   string
	Value  float64
	Ticks  int // remaining
}

// BuffManager tracks timed buffs per subject and feeds them to the stat engine as
// a stat.ModifierSource.
//
// Stacking rules (same Group):
//   - higher Level replaces the existing buff
//   - equal Level refreshes the duration and takes the new value
//   - lower Level is rejected
//
// When the limit is reached the oldest buff is dropped.
//
// Thread-safe. Engine invalidation runs after mu is released: the engine calls
// StatModifier while holding its own lock.
type BuffManager struct {
	mu        sync.RWMutex
	stats     *stat.Engine
	limit     int
	bySubject map[string][]*Buff
}

// NewBuffManager creates a manager and registers it with stats (may be nil).
func NewBuffManager(stats *stat.Engine, limit int) *BuffManager {
	if limit <= 0 {
		limit = DefaultBuffLimit
	}
	m := &BuffManager{
		stats:     stats,
		limit:     limit,
		bySubject: make(map[string][]*Buff, 64),
	}
	if stats != nil {
		stats.AddModifierSource(m)
	}
	return m
}

// Apply adds b to the subject. Returns true if the buff was added, replaced or refreshed.
func (m *BuffManager) Apply(subjectID string, b Buff) bool {
	if b.Ticks <= 0 {
		return false
	}
	added, changed := m.apply(subjectID, b)
	if changed {
		m.invalidate(subjectID)
	}
	return added
}

func (m *BuffManager) apply(subjectID string, b Buff) (added, changed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buffs := m.bySubject[subjectID]
	if b.Group != "" {
		for i, existing := range buffs {
			if existing.Group != b.Group {
				continue
			}
			switch {
			case b.Level > existing.Level:
				nb := b
				buffs[i] = &nb
				return true, true
			case b.Level == existing.Level:
				changed := existing.Stat != b.Stat || existing.Value != b.Value
				nb := b
				buffs[i] = &nb
				return true, changed
			default:
				return false, false
			}
		}
	}

	if len(buffs) >= m.limit {
		oldest := buffs[0]
		buffs = slices.Delete(buffs, 0, 1)
		slog.Debug("buff limit reached, removed oldest",
			"subject", subjectID,
			"removed", oldest.Group)
	}

	nb := b
	m.bySubject[subjectID] = append(buffs, &nb)
	return true, true
}

// Remove drops every buff of the group from the subject.
func (m *BuffManager) Remove(subjectID, group string) bool {
	m.mu.Lock()
	buffs := m.bySubject[subjectID]
	before := len(buffs)
	buffs = slices.DeleteFunc(buffs, func(b *Buff) bool {
		return b.Group == group
	})
	if len(buffs) == 0 {
		delete(m.bySubject, subjectID)
	} else {
		m.bySubject[subjectID] = buffs
	}
	removed := len(buffs) != before
	m.mu.Unlock()

	if removed {
		m.invalidate(subjectID)
	}
	return removed
}

// Clear drops every buff of the subject (disconnect, death).
func (m *BuffManager) Clear(subjectID string) {
	m.mu.Lock()
	_, had := m.bySubject[subjectID]
	delete(m.bySubject, subjectID)
	m.mu.Unlock()

	if had {
		m.invalidate(subjectID)
	}
}

// StatModifier sums the active buffs of subjectID on statID.
func (m *BuffManager) StatModifier(subjectID, statID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	for _, b := range m.bySubject[subjectID] {
		if b.Stat == statID {
			sum += b.Value
		}
	}
	return sum
}

// Tick counts every buff down by one tick and removes the expired ones.
func (m *BuffManager) Tick() {
	var expired []string

	m.mu.Lock()
	for id, buffs := range m.bySubject {
		n := 0
		for _, b := range buffs {
			b.Ticks--
			if b.Ticks > 0 {
				buffs[n] = b
				n++
			}
		}
		if n != len(buffs) {
			expired = append(expired, id)
		}
		if n == 0 {
			delete(m.bySubject, id)
			continue
		}
		m.bySubject[id] = buffs[:n]
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.invalidate(id)
	}
}

// Active returns copies of the subject's buffs in application order.
func (m *BuffManager) Active(subjectID string) []Buff {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Buff, 0, len(m.bySubject[subjectID]))
	for _, b := range m.bySubject[subjectID] {
		out = append(out, *b)
	}
	return out
}

// Count returns the number of active buffs on the subject.
func (m *BuffManager) Count(subjectID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySubject[subjectID])
}

func (m *BuffManager) invalidate(subjectID string) {
	if m.stats != nil {
		m.stats.Invalidate(subjectID)
	}
}
