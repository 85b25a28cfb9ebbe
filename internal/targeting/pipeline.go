package targeting

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/stat"
)

// Filter keeps a candidate when it returns true.
type Filter func(o Origin, t Target) bool

// ExcludeCaster drops the caster from the candidates.
func ExcludeCaster() Filter {
	return func(o Origin, t Target) bool {
		return o.Caster == nil || t.ID() != o.Caster.ID()
	}
}

// SubjectsOnly drops ground points.
func SubjectsOnly() Filter {
	return func(_ Origin, t Target) bool { return t.Subject != nil }
}

// StatResolver resolves stats for sort keys. *stat.Engine implements it.
type StatResolver interface {
	Resolve(s stat.Subject, statID string) float64
}

// ThreatProvider ranks targets by threat towards the caster.
type ThreatProvider interface {
	Threat(casterID, targetID string) float64
}

// SortKey names a sort criterion.
type SortKey string

const (
	SortNone     SortKey = ""
	SortDistance SortKey = "distance"
	SortHealth   SortKey = "health"
	SortThreat   SortKey = "threat"
)

// Sorter orders candidates by Key. Equal keys keep their shape order.
type Sorter struct {
	Key        SortKey
	Descending bool
	HealthStat string // default "maxHealth"
	Stats      StatResolver
	Threat     ThreatProvider
}

// Sort orders targets in place.
func (s *Sorter) Sort(o Origin, targets []Target) {
	if s == nil || s.Key == SortNone || len(targets) < 2 {
		return
	}
	type keyed struct {
		t   Target
		key float64
	}
	items := make([]keyed, len(targets))
	for i, t := range targets {
		items[i] = keyed{t: t, key: s.keyOf(o, t)}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		if s.Descending {
			return cmp.Compare(b.key, a.key)
		}
		return cmp.Compare(a.key, b.key)
	})
	for i := range items {
		targets[i] = items[i].t
	}
}

func (s *Sorter) keyOf(o Origin, t Target) float64 {
	switch s.Key {
	case SortDistance:
		return t.Location.DistanceSquared(o.Location)
	case SortHealth:
		if s.Stats == nil || t.Subject == nil {
			return 0
		}
		id := s.HealthStat
		if id == "" {
			id = "maxHealth"
		}
		return s.Stats.Resolve(t.Subject, id)
	case SortThreat:
		if s.Threat == nil {
			return 0
		}
		return s.Threat.Threat(o.CasterID(), t.ID())
	}
	return 0
}

// NewSorter reads "sort" and "order" (asc|desc) from p. Returns nil when no sort
// key is configured.
func NewSorter(p params.Tree, stats StatResolver, threat ThreatProvider) (*Sorter, error) {
	key := SortKey(strings.ToLower(p.String("sort", "")))
	switch key {
	case SortNone:
		return nil, nil
	case SortDistance, SortHealth, SortThreat:
	default:
		return nil, fmt.Errorf("unknown sort key %q", key)
	}

	var desc bool
	switch strings.ToLower(p.String("order", "asc")) {
	case "asc", "ascending":
	case "desc", "descending":
		desc = true
	default:
		return nil, fmt.Errorf("unknown sort order %q", p.String("order", ""))
	}
	return &Sorter{
		Key:        key,
		Descending: desc,
		HealthStat: p.String("health_stat", "maxHealth"),
		Stats:      stats,
		Threat:     threat,
	}, nil
}

// Targeter is the composed pipeline shape → filters → sort → limit.
// Limit <= 0 means unlimited. Locations from the shape pass through untouched.
type Targeter struct {
	Shape   Shape
	Filters []Filter
	Sorter  *Sorter
	Limit   int
}

// Select runs the pipeline.
func (t *Targeter) Select(w World, o Origin) Result {
	if t == nil || t.Shape == nil {
		return Result{}
	}
	res := t.Shape.Select(w, o)

	kept := res.Targets[:0:0]
	for _, cand := range res.Targets {
		if t.accept(o, cand) {
			kept = append(kept, cand)
		}
	}

	t.Sorter.Sort(o, kept)

	if t.Limit > 0 && len(kept) > t.Limit {
		kept = kept[:t.Limit]
	}
	res.Targets = kept
	return res
}

func (t *Targeter) accept(o Origin, cand Target) bool {
	for _, f := range t.Filters {
		if !f(o, cand) {
			return false
		}
	}
	return true
}
