package ai

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/skill"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/targeting"
)

// DefaultThinkInterval is how often (in ticks) a caster AI re-evaluates.
const DefaultThinkInterval = 10

// HateSource reports who a mob hates most.
type HateSource interface {
	MostHated(mobID string) (string, bool)
}

// SubjectLocator finds live subjects and their positions.
type SubjectLocator interface {
	Subject(id string) (stat.Subject, bool)
	Locate(id string) (model.Location, bool)
}

// CasterAI makes a mob cast its abilities, in order of preference, at its most
// hated attacker. Abilities on cooldown are skipped.
type CasterAI struct {
	mob       stat.Subject
	abilities []string
	caster    *skill.Caster
	hate      HateSource
	locator   SubjectLocator
	interval  uint64

	isRunning atomic.Bool
	intention atomic.Int32
	casts     atomic.Int64
}

// NewCasterAI creates a controller. interval <= 0 selects DefaultThinkInterval.
func NewCasterAI(mob stat.Subject, abilities []string, caster *skill.Caster, hate HateSource, locator SubjectLocator, interval int) *CasterAI {
	if interval <= 0 {
		interval = DefaultThinkInterval
	}
	return &CasterAI{
		mob:       mob,
		abilities: abilities,
		caster:    caster,
		hate:      hate,
		locator:   locator,
		interval:  uint64(interval),
	}
}

// Start starts AI controller
func (ai *CasterAI) Start() {
	ai.isRunning.Store(true)
	ai.SetIntention(IntentionIdle)
}

// Stop stops AI controller
func (ai *CasterAI) Stop() {
	ai.isRunning.Store(false)
	ai.SetIntention(IntentionIdle)
}

// SetIntention sets AI intention
func (ai *CasterAI) SetIntention(intention Intention) {
	old := Intention(ai.intention.Swap(int32(intention)))
	if old != intention && IsDebugEnabled() {
		slog.Debug("AI intention changed",
			"mob", ai.mob.ID(),
			"from", old,
			"to", intention)
	}
}

// CurrentIntention returns current AI intention
func (ai *CasterAI) CurrentIntention() Intention {
	return Intention(ai.intention.Load())
}

// Casts returns how many casts this controller started.
func (ai *CasterAI) Casts() int64 {
	return ai.casts.Load()
}

// Tick re-evaluates every interval ticks.
func (ai *CasterAI) Tick(tick uint64) {
	if !ai.isRunning.Load() || tick%ai.interval != 0 {
		return
	}

	targetID, ok := ai.hate.MostHated(ai.mob.ID())
	if !ok {
		ai.SetIntention(IntentionIdle)
		return
	}
	target, ok := ai.locator.Subject(targetID)
	if !ok {
		ai.SetIntention(IntentionIdle)
		return
	}
	loc, _ := ai.locator.Locate(targetID)
	ai.SetIntention(IntentionAttack)

	for _, id := range ai.abilities {
		_, err := ai.caster.Cast(skill.CastRequest{
			Caster:    ai.mob,
			AbilityID: id,
			Targets:   []targeting.Target{{Subject: target, Location: loc}},
		})
		if err == nil {
			ai.casts.Add(1)
			if IsDebugEnabled() {
				slog.Debug("mob cast", "mob", ai.mob.ID(), "ability", id, "target", targetID, "tick", tick)
			}
			return
		}
		if !errors.Is(err, skill.ErrOnCooldown) {
			slog.Warn("mob cast failed", "mob", ai.mob.ID(), "ability", id, "error", err)
		}
	}
}
