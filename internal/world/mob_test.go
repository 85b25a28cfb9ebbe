package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/combat"
	"github.com/udisondev/skillflow/internal/ecs"
	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/skill"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

type fallbackSink struct {
	damaged []string
	healed  []string
}

func (f *fallbackSink) ApplyDamage(_ *skill.Context, t targeting.Target, _ float64, _ bool) {
	f.damaged = append(f.damaged, t.ID())
}

func (f *fallbackSink) ApplyHeal(_ *skill.Context, t targeting.Target, _ float64) {
	f.healed = append(f.healed, t.ID())
}

func newMobs(t *testing.T) (*Mobs, *Grid, *ecs.World) {
	t.Helper()

	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)
	require.NoError(t, engine.Define(stat.Definition{ID: DefaultHealthStat, Default: 10}))
	w := ecs.NewWorld()
	g := NewGrid(16)
	return NewMobs(w, g, engine), g, w
}

func casting(by string) *skill.Context {
	return skill.NewContext("slash", by, nil, model.Location{})
}

func TestMobs_SpawnAndDespawn(t *testing.T) {
	ms, g, w := newMobs(t)

	m, err := ms.Spawn(MobTemplate{Name: "Wolf", Level: 3, Stats: map[string]float64{DefaultHealthStat: 40}}, at(5, 5), model.Vector{X: 1})
	require.NoError(t, err)
	assert.True(t, IsMobID(m.ID()))
	assert.Equal(t, 3, m.Level())
	assert.True(t, w.Alive(m.Entity()))

	h, ok := ms.Health(m.ID())
	require.True(t, ok)
	assert.Equal(t, Health{Current: 40, Max: 40}, h)

	loc, ok := g.Locate(m.ID())
	require.True(t, ok)
	assert.Equal(t, at(5, 5), loc)
	assert.Equal(t, 1, ms.Count())

	require.True(t, ms.Despawn(m.ID()))
	assert.False(t, ms.Despawn(m.ID()))
	assert.False(t, w.Alive(m.Entity()))
	_, ok = g.Locate(m.ID())
	assert.False(t, ok)
	assert.Zero(t, ms.Count())
}

func TestMobs_SpawnDefaults(t *testing.T) {
	ms, _, _ := newMobs(t)

	m, err := ms.Spawn(MobTemplate{Name: "Rat"}, at(0, 0), model.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Level())

	h, _ := ms.Health(m.ID())
	assert.Equal(t, 10.0, h.Max, "definition default")

	_, err = ms.Spawn(MobTemplate{}, at(0, 0), model.Vector{})
	assert.Error(t, err)
}

func TestMobs_DamageKillsAndFiresHook(t *testing.T) {
	ms, _, _ := newMobs(t)
	m, err := ms.Spawn(MobTemplate{Name: "Wolf", Stats: map[string]float64{DefaultHealthStat: 30}}, at(0, 0), model.Vector{})
	require.NoError(t, err)

	var killed, killer string
	ms.OnDeath(func(dead *Mob, by string) { killed, killer = dead.ID(), by })

	target := targeting.Target{Subject: m}
	ms.ApplyDamage(casting("hero"), target, 12, false)
	ms.ApplyDamage(casting("rogue"), target, 5, true)

	h, _ := ms.Health(m.ID())
	assert.Equal(t, 13.0, h.Current)

	ms.ApplyHeal(casting("priest"), target, 100)
	h, _ = ms.Health(m.ID())
	assert.Equal(t, 30.0, h.Current, "heal clamps at max")

	assert.Equal(t, 12.0, ms.Threat(m.ID(), "hero"))
	top, ok := ms.MostHated(m.ID())
	require.True(t, ok)
	assert.Equal(t, "hero", top)

	ms.ApplyDamage(casting("rogue"), target, 100, false)
	assert.Equal(t, m.ID(), killed)
	assert.Equal(t, "rogue", killer)

	_, ok = ms.Mob(m.ID())
	assert.False(t, ok, "dead mobs are despawned")
	assert.Zero(t, ms.Threat(m.ID(), "hero"))
}

func TestMobs_FallbackForOtherSubjects(t *testing.T) {
	ms, _, _ := newMobs(t)
	fb := &fallbackSink{}
	ms.Fallback = fb

	player := targeting.Target{Subject: dummy{"player-1"}}
	ms.ApplyDamage(casting("mob-9"), player, 5, false)
	ms.ApplyHeal(casting("mob-9"), player, 5)

	assert.Equal(t, []string{"player-1"}, fb.damaged)
	assert.Equal(t, []string{"player-1"}, fb.healed)

	ms.Fallback = nil
	ms.ApplyDamage(casting("x"), player, 5, false)
}

func TestMobs_ThreatSortsTargets(t *testing.T) {
	ms, g, _ := newMobs(t)
	m, err := ms.Spawn(MobTemplate{Name: "Boss", Stats: map[string]float64{DefaultHealthStat: 1000}}, at(0, 0), model.Vector{})
	require.NoError(t, err)
	require.NoError(t, g.Place(dummy{"tank"}, at(2, 0), model.Vector{}))
	require.NoError(t, g.Place(dummy{"dps"}, at(3, 0), model.Vector{}))

	target := targeting.Target{Subject: m}
	ms.ApplyDamage(casting("dps"), target, 50, false)
	ms.ApplyDamage(casting("tank"), target, 80, false)

	tg := &targeting.Targeter{
		Shape:   targeting.Radius{Radius: 10},
		Filters: []targeting.Filter{targeting.ExcludeCaster()},
		Sorter:  &targeting.Sorter{Key: targeting.SortThreat, Descending: true, Threat: ms},
		Limit:   1,
	}
	res := tg.Select(g, targeting.Origin{Caster: m, Location: at(0, 0)})
	assert.Equal(t, []string{"tank"}, ids(res.Targets))
}

func TestMobs_DespawnDuringDelayedHit(t *testing.T) {
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)
	require.NoError(t, engine.Define(
		stat.Definition{ID: DefaultHealthStat, Default: 10},
		stat.Definition{ID: "defense"},
	))
	w := ecs.NewWorld()
	g := NewGrid(16)
	ms := NewMobs(w, g, engine)
	fb := &fallbackSink{}
	ms.Fallback = fb

	m, err := ms.Spawn(MobTemplate{Name: "Wolf", Stats: map[string]float64{DefaultHealthStat: 50}}, at(1, 0), model.Vector{})
	require.NoError(t, err)

	interp := skill.NewInterpreter(w, &skill.Runtime{
		Stats:  engine,
		Damage: combat.NewPipeline(engine),
		World:  g,
		Sink:   ms,
	})
	hit, err := skill.DefaultRegistries().Mechanics.Create("damage", params.Tree{"amount": 5, "tags": "PHYSICAL"})
	require.NoError(t, err)
	a := &skill.Ability{ID: "slow", Steps: []skill.Step{{Delay: 2}, {Mechanics: []skill.Mechanic{hit}}}}

	c := skill.NewContext("slow", "", nil, at(0, 0))
	c.AddTargets(targeting.Target{Subject: m, Location: at(1, 0)})
	_, err = interp.Start(a, c)
	require.NoError(t, err)

	interp.Tick()
	require.True(t, ms.Despawn(m.ID()))
	interp.Tick()
	interp.Tick()

	assert.False(t, engine.Cached(m.ID(), "defense"), "stats of a despawned mob are not cached again")
	assert.Empty(t, fb.damaged, "hits on a despawned mob never reach the fallback sink")
	assert.Equal(t, 0, interp.Running())
}

func TestAggroList(t *testing.T) {
	l := NewAggroList()
	_, ok := l.MostHated()
	assert.False(t, ok)

	l.Add("b", 5)
	l.Add("a", 5)
	l.Add("c", -1)
	l.Add("", 9)
	assert.Equal(t, 2, l.Len())

	top, _ := l.MostHated()
	assert.Equal(t, "a", top, "ties go to the smaller id")

	l.Forget("a")
	top, _ = l.MostHated()
	assert.Equal(t, "b", top)
}
