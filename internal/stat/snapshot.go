package stat

import "slices"

// Snapshot is an immutable point-in-time copy of a subject's resolved stats.
// It is safe to share between goroutines and between cloned execution contexts.
type Snapshot struct {
	subjectID string
	name      string
	level     int
	values    map[string]float64
}

// Snapshot resolves ids (all defined stats when empty) for s and freezes them.
// Returns nil for a nil subject. A not-ready subject yields an empty snapshot.
func (e *Engine) Snapshot(s Subject, ids ...string) *Snapshot {
	if s == nil {
		return nil
	}
	snap := &Snapshot{
		subjectID: s.ID(),
		name:      s.DisplayName(),
		level:     levelOf(s),
		values:    make(map[string]float64, len(ids)),
	}
	if !isReady(s) {
		return snap
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(ids) == 0 {
		ids = make([]string, 0, len(e.defs))
		for id := range e.defs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}
	for _, id := range ids {
		r := resolution{engine: e, subject: s, key: snap.subjectID, level: snap.level}
		snap.values[id] = r.resolve(id)
	}
	return snap
}

// SubjectID returns the id of the captured subject.
func (s *Snapshot) SubjectID() string {
	if s == nil {
		return ""
	}
	return s.subjectID
}

// Name returns the display name captured with the snapshot.
func (s *Snapshot) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Level returns the captured level.
func (s *Snapshot) Level() int {
	if s == nil {
		return 0
	}
	return s.level
}

// Get returns the captured value of id.
func (s *Snapshot) Get(id string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.values[id]
	return v, ok
}

// Value returns the captured value of id, or 0.
func (s *Snapshot) Value(id string) float64 {
	v, _ := s.Get(id)
	return v
}

// Values returns a copy of every captured value.
func (s *Snapshot) Values() map[string]float64 {
	if s == nil {
		return nil
	}
	cp := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Len returns the number of captured stats.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// NewSnapshot builds a snapshot from literal values, mostly for tests and replays.
func NewSnapshot(subjectID, name string, level int, values map[string]float64) *Snapshot {
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Snapshot{subjectID: subjectID, name: name, level: level, values: cp}
}
