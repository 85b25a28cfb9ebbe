package stat

// Subject is anything the engine can resolve stats for: spawned mobs, loaded
// player profiles, test doubles. Optional capabilities are discovered with
// type assertions.
type Subject interface {
	// ID is stable for the subject's lifetime and keys the engine caches.
	ID() string
	DisplayName() string
	// RawStat returns the stored base value, if any.
	RawStat(id string) (float64, bool)
	// NativeStat returns a host-owned attribute (e.g. movement speed of the avatar).
	NativeStat(id string) (float64, bool)
}

// Leveled subjects scale role growth by level. Subjects without it are level 1.
type Leveled interface {
	Level() int
}

// RoleAssignment is one active role at a weight (primary 1.0, secondary 0.3, ...).
type RoleAssignment struct {
	Role   string
	Weight float64
}

// RoleHolder subjects contribute weighted role stats.
type RoleHolder interface {
	Roles() []RoleAssignment
}

// Modifier is an additive external bonus.
type Modifier struct {
	Source string
	Value  float64
}

// ModifierHolder subjects carry their own additive modifiers.
type ModifierHolder interface {
	StatModifiers(id string) []Modifier
}

// EquipmentHolder subjects add equipment contributions.
type EquipmentHolder interface {
	EquipmentStat(id string) float64
}

// Availability lets a subject report that its data is not loaded yet.
// Unavailable subjects resolve to zero and are never cached.
type Availability interface {
	Ready() bool
}

// ModifierSource supplies modifiers owned outside the subject (timed buffs, auras).
type ModifierSource interface {
	StatModifier(subjectID, statID string) float64
}

func levelOf(s Subject) int {
	if l, ok := s.(Leveled); ok {
		if lvl := l.Level(); lvl > 0 {
			return lvl
		}
	}
	return 1
}

func isReady(s Subject) bool {
	if a, ok := s.(Availability); ok {
		return a.Ready()
	}
	return true
}
