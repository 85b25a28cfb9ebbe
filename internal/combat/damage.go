package combat

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/udisondev/skillflow/internal/stat"
)

// Stat ids read by the pipeline.
const (
	StatPhysicalDamage = "physicalDamage"
	StatMagicDamage    = "magicDamage"
	StatCriticalChance = "criticalChance" // percent, 0..100
	StatCriticalDamage = "criticalDamage" // percent multiplier, 200 = double
	StatDefense        = "defense"
)

// DefaultDefenseConstant is the knee of the defense curve: defense equal to it halves damage.
const DefaultDefenseConstant = 400.0

// ErrAlreadyProcessed is returned when a context goes through the pipeline twice.
var ErrAlreadyProcessed = errors.New("damage context already processed")

// DamageContext carries one hit through the pipeline.
// Snapshots take precedence over live subjects when both are set.
type DamageContext struct {
	Attacker         stat.Subject
	Victim           stat.Subject
	AttackerSnapshot *stat.Snapshot
	VictimSnapshot   *stat.Snapshot
	Initial          float64
	Tags             Tag

	final     float64
	critical  bool
	processed bool
}

// Final returns the processed amount; ok is false until Process succeeded.
func (dc *DamageContext) Final() (amount float64, ok bool) {
	return dc.final, dc.processed
}

// Critical reports whether the crit roll succeeded.
func (dc *DamageContext) Critical() bool {
	return dc.critical
}

// Processed reports whether the final amount has been written.
func (dc *DamageContext) Processed() bool {
	return dc.processed
}

// Pipeline applies base damage, crit and defense to damage contexts.
// It holds no per-hit state and is safe to share.
type Pipeline struct {
	stats           *stat.Engine
	defenseConstant float64
	roll            func() float64 // uniform [0,100)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDefenseConstant overrides DefaultDefenseConstant. Non-positive values are ignored.
func WithDefenseConstant(k float64) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.defenseConstant = k
		}
	}
}

// WithRoll replaces the crit random source. roll must return values in [0,100).
func WithRoll(roll func() float64) Option {
	return func(p *Pipeline) {
		if roll != nil {
			p.roll = roll
		}
	}
}

// NewPipeline creates a pipeline reading live stats from stats (may be nil when
// every context carries snapshots).
func NewPipeline(stats *stat.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		stats:           stats,
		defenseConstant: DefaultDefenseConstant,
		roll:            func() float64 { return rand.Float64() * 100 },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefenseConstant returns the configured curve constant.
func (p *Pipeline) DefenseConstant() float64 {
	return p.defenseConstant
}

// Process computes and stores the final amount of dc.
//
// Order:
//  1. initial + attacker physicalDamage (PHYSICAL) and/or magicDamage (MAGIC);
//  2. crit: roll < criticalChance ⇒ *criticalDamage/100 (skipped for TRUE);
//  3. defense: *= 1 - def/(def+K) (skipped for TRUE and IGNORE_DEFENSE);
//  4. clamp at 0.
//
// No rounding. The final amount is write-once.
func (p *Pipeline) Process(dc *DamageContext) (float64, error) {
	if dc == nil {
		return 0, fmt.Errorf("process damage: nil context")
	}
	if dc.processed {
		return dc.final, ErrAlreadyProcessed
	}

	damage := dc.Initial
	if dc.Tags.Has(TagPhysical) {
		damage += p.attackerStat(dc, StatPhysicalDamage)
	}
	if dc.Tags.Has(TagMagic) {
		damage += p.attackerStat(dc, StatMagicDamage)
	}

	if !dc.Tags.Has(TagTrue) {
		chance := p.attackerStat(dc, StatCriticalChance)
		if chance > 0 && p.roll() < chance {
			damage *= p.attackerStat(dc, StatCriticalDamage) / 100
			dc.critical = true
		}
	}

	if !dc.Tags.Has(TagTrue) && !dc.Tags.Has(TagIgnoreDefense) {
		damage *= p.mitigation(p.victimStat(dc, StatDefense))
	}

	dc.final = max(0, damage)
	dc.processed = true

	if IsDebugEnabled() {
		slog.Debug("damage processed",
			"initial", dc.Initial,
			"final", dc.final,
			"critical", dc.critical,
			"tags", dc.Tags)
	}
	return dc.final, nil
}

// mitigation returns the damage multiplier for a defense value. Negative defense
// is treated as zero so the curve never amplifies.
func (p *Pipeline) mitigation(def float64) float64 {
	if def <= 0 {
		return 1
	}
	return 1 - def/(def+p.defenseConstant)
}

func (p *Pipeline) attackerStat(dc *DamageContext, id string) float64 {
	return p.lookup(dc.AttackerSnapshot, dc.Attacker, id)
}

func (p *Pipeline) victimStat(dc *DamageContext, id string) float64 {
	return p.lookup(dc.VictimSnapshot, dc.Victim, id)
}

func (p *Pipeline) lookup(snap *stat.Snapshot, s stat.Subject, id string) float64 {
	if v, ok := snap.Get(id); ok {
		return v
	}
	if s == nil || p.stats == nil {
		return 0
	}
	return p.stats.Resolve(s, id)
}
