package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/stat"
)

type subject struct {
	id  string
	raw map[string]float64
}

func (s subject) ID() string          { return s.id }
func (s subject) DisplayName() string { return s.id }
func (s subject) RawStat(id string) (float64, bool) {
	v, ok := s.raw[id]
	return v, ok
}
func (s subject) NativeStat(string) (float64, bool) { return 0, false }

func fixedRoll(v float64) Option {
	return WithRoll(func() float64 { return v })
}

func snap(id string, values map[string]float64) *stat.Snapshot {
	return stat.NewSnapshot(id, id, 1, values)
}

func TestProcess_DefenseCurveHalvesAtConstant(t *testing.T) {
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	engine := stat.NewEngine(ev)
	p := NewPipeline(engine, fixedRoll(99))

	dc := &DamageContext{
		Attacker: subject{id: "a", raw: map[string]float64{StatPhysicalDamage: 0}},
		Victim:   subject{id: "v", raw: map[string]float64{StatDefense: 400}},
		Initial:  100,
		Tags:     TagPhysical,
	}

	got, err := p.Process(dc)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got, 0.01)
	assert.False(t, dc.Critical())

	final, ok := dc.Final()
	assert.True(t, ok)
	assert.Equal(t, got, final)
}

func TestProcess_CritDoublesWithoutDefense(t *testing.T) {
	p := NewPipeline(nil)

	dc := &DamageContext{
		AttackerSnapshot: snap("a", map[string]float64{
			StatCriticalChance: 100,
			StatCriticalDamage: 200,
		}),
		Initial: 10,
	}

	got, err := p.Process(dc)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)
	assert.True(t, dc.Critical())
}

func TestProcess_Table(t *testing.T) {
	attacker := map[string]float64{
		StatPhysicalDamage: 20,
		StatMagicDamage:    50,
		StatCriticalChance: 50,
		StatCriticalDamage: 150,
	}
	tests := []struct {
		name     string
		tags     Tag
		roll     float64
		defense  float64
		initial  float64
		want     float64
		wantCrit bool
	}{
		{name: "physical no crit", tags: TagPhysical, roll: 60, defense: 0, initial: 10, want: 30},
		{name: "magic crit", tags: TagMagic, roll: 10, defense: 0, initial: 10, want: 90, wantCrit: true},
		{name: "physical crit vs defense", tags: TagPhysical, roll: 0, defense: 400, initial: 20, want: 30, wantCrit: true},
		{name: "ignore defense keeps crit", tags: TagPhysical | TagIgnoreDefense, roll: 0, defense: 400, initial: 20, want: 60, wantCrit: true},
		{name: "true skips crit and defense", tags: TagTrue, roll: 0, defense: 400, initial: 20, want: 20},
		{name: "untagged adds no base", tags: 0, roll: 99, defense: 0, initial: 7, want: 7},
		{name: "negative clamped", tags: TagTrue, roll: 99, initial: -5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(nil, fixedRoll(tt.roll))
			dc := &DamageContext{
				AttackerSnapshot: snap("a", attacker),
				VictimSnapshot:   snap("v", map[string]float64{StatDefense: tt.defense}),
				Initial:          tt.initial,
				Tags:             tt.tags,
			}

			got, err := p.Process(dc)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, tt.wantCrit, dc.Critical())
		})
	}
}

func TestProcess_WriteOnce(t *testing.T) {
	p := NewPipeline(nil)
	dc := &DamageContext{Initial: 10}

	first, err := p.Process(dc)
	require.NoError(t, err)

	second, err := p.Process(dc)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, first, second)
}

func TestProcess_NilContext(t *testing.T) {
	_, err := NewPipeline(nil).Process(nil)
	assert.Error(t, err)
}

func TestProcess_SnapshotWinsOverLiveSubject(t *testing.T) {
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	p := NewPipeline(stat.NewEngine(ev), fixedRoll(99))

	dc := &DamageContext{
		Attacker:         subject{id: "a", raw: map[string]float64{StatPhysicalDamage: 1000}},
		AttackerSnapshot: snap("a", map[string]float64{StatPhysicalDamage: 5}),
		Initial:          0,
		Tags:             TagPhysical,
	}

	got, err := p.Process(dc)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)
}

func TestProcess_CustomDefenseConstant(t *testing.T) {
	p := NewPipeline(nil, WithDefenseConstant(100), fixedRoll(99))
	dc := &DamageContext{
		VictimSnapshot: snap("v", map[string]float64{StatDefense: 100}),
		Initial:        80,
	}

	got, err := p.Process(dc)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, got, 1e-9)
	assert.Equal(t, 100.0, p.DefenseConstant())
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags([]string{"physical", "ignore-defense"})
	require.NoError(t, err)
	assert.True(t, tags.Has(TagPhysical))
	assert.True(t, tags.Has(TagIgnoreDefense))
	assert.False(t, tags.Has(TagTrue))
	assert.Equal(t, "PHYSICAL|IGNORE_DEFENSE", tags.String())

	_, err = ParseTags([]string{"fire"})
	assert.Error(t, err)
}

func BenchmarkProcess(b *testing.B) {
	p := NewPipeline(nil, fixedRoll(50))
	attacker := snap("a", map[string]float64{StatPhysicalDamage: 20, StatCriticalChance: 25, StatCriticalDamage: 200})
	victim := snap("v", map[string]float64{StatDefense: 300})

	for b.Loop() {
		dc := &DamageContext{AttackerSnapshot: attacker, VictimSnapshot: victim, Initial: 100, Tags: TagPhysical}
		_, _ = p.Process(dc)
	}
}
