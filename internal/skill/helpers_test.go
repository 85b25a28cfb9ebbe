package skill

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/combat"
	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

type testSubject struct {
	id       string
	raw      map[string]float64
	notReady bool
}

func (s *testSubject) ID() string          { return s.id }
func (s *testSubject) DisplayName() string { return "Test " + s.id }
func (s *testSubject) RawStat(id string) (float64, bool) {
	v, ok := s.raw[id]
	return v, ok
}
func (s *testSubject) NativeStat(string) (float64, bool) { return 0, false }
func (s *testSubject) Ready() bool                       { return !s.notReady }

func newTestSubject(id string, raw map[string]float64) *testSubject {
	if raw == nil {
		raw = map[string]float64{}
	}
	return &testSubject{id: id, raw: raw}
}

type hit struct {
	target   string
	amount   float64
	critical bool
	heal     bool
}

type recordingSink struct {
	mu   sync.Mutex
	hits []hit
}

func (s *recordingSink) ApplyDamage(_ *Context, t targeting.Target, amount float64, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, hit{target: t.ID(), amount: amount, critical: critical})
}

func (s *recordingSink) ApplyHeal(_ *Context, t targeting.Target, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, hit{target: t.ID(), amount: amount, heal: true})
}

func (s *recordingSink) all() []hit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hit(nil), s.hits...)
}

type recordingHost struct {
	events []Feedback
}

func (h *recordingHost) Feedback(fb Feedback) { h.events = append(h.events, fb) }

type stubWorld struct {
	targets []targeting.Target
}

func (w *stubWorld) SubjectsWithin(center model.Location, radius float64) []targeting.Target {
	var out []targeting.Target
	for _, t := range w.targets {
		if t.Location.DistanceSquared(center) <= radius*radius {
			out = append(out, t)
		}
	}
	return out
}

func (w *stubWorld) Forward(string) (model.Vector, bool) { return model.Vector{X: 1}, true }

func (w *stubWorld) Locate(id string) (model.Location, bool) {
	for _, t := range w.targets {
		if t.ID() == id {
			return t.Location, true
		}
	}
	return model.Location{}, false
}

func (w *stubWorld) Subject(id string) (stat.Subject, bool) {
	for _, t := range w.targets {
		if t.ID() == id {
			return t.Subject, true
		}
	}
	return nil, false
}

// subjectMap is a Subjects directory for subjects that are not placed in a world.
type subjectMap map[string]stat.Subject

func (m subjectMap) Subject(id string) (stat.Subject, bool) {
	s, ok := m[id]
	return s, ok
}

func (m subjectMap) add(subjects ...stat.Subject) {
	for _, s := range subjects {
		if s != nil {
			m[s.ID()] = s
		}
	}
}

func (w *stubWorld) RayTrace(from model.Location, dir model.Vector, maxDistance float64) model.Location {
	return from.Add(dir.Normalize().Scale(maxDistance))
}

type fixture struct {
	world  *ecs.World
	engine *stat.Engine
	rt     *Runtime
	interp *Interpreter
	sink   *recordingSink
	host   *recordingHost
	lib    *Library
	known  subjectMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)

	f := &fixture{
		world:  ecs.NewWorld(),
		engine: engine,
		sink:   &recordingSink{},
		host:   &recordingHost{},
		lib:    NewLibrary(),
		known:  subjectMap{},
	}
	f.rt = &Runtime{
		Stats:     engine,
		Damage:    combat.NewPipeline(engine, combat.WithRoll(func() float64 { return 99.9 })),
		Formulas:  ev,
		World:     &stubWorld{},
		Subjects:  f.known,
		Sink:      f.sink,
		Host:      f.host,
		Buffs:     NewBuffManager(engine, 0),
		Abilities: f.lib,
		Roll:      func() float64 { return 50 },
	}
	f.interp = NewInterpreter(f.world, f.rt)
	return f
}

// context builds a cast context and makes caster and targets resolvable.
func (f *fixture) context(caster stat.Subject, targets ...targeting.Target) *Context {
	var casterID string
	if caster != nil {
		casterID = caster.ID()
		f.known.add(caster)
	}
	for _, t := range targets {
		f.known.add(t.Subject)
	}
	c := NewContext("", casterID, f.engine.Snapshot(caster), model.Location{})
	c.AddTargets(targets...)
	return c
}

func (f *fixture) ticks(n int) {
	for range n {
		f.interp.Tick()
	}
}

// counter is a mechanic recording the tick it fired on.
type counter struct {
	interp *Interpreter
	fired  []uint64
}

func (c *counter) Apply(*Runtime, *Context) error {
	c.fired = append(c.fired, c.interp.Ticks())
	return nil
}

func target(id string, x float64) targeting.Target {
	return targeting.Target{Subject: newTestSubject(id, nil), Location: model.NewLocation(x, 0, 0)}
}
