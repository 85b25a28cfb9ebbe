package main

import (
	"log/slog"

	"github.com/udisondev/skillflow/internal/skill"
	"github.com/udisondev/skillflow/internal/targeting"
)

// logHost renders feedback into the log. There is no client to draw particles for.
type logHost struct{}

func (logHost) Feedback(fb skill.Feedback) {
	if !skill.IsDebugEnabled() {
		return
	}
	slog.Debug("feedback",
		"kind", fb.Kind,
		"name", fb.Name,
		"ability", fb.Context.AbilityID,
		"caster", fb.Context.CasterID(),
		"points", len(fb.At))
}

// logSink receives damage and heals aimed at subjects that are not mobs.
type logSink struct{}

func (logSink) ApplyDamage(c *skill.Context, t targeting.Target, amount float64, critical bool) {
	slog.Info("subject damaged",
		"target", t.ID(),
		"caster", c.CasterID(),
		"ability", c.AbilityID,
		"amount", amount,
		"critical", critical)
}

func (logSink) ApplyHeal(c *skill.Context, t targeting.Target, amount float64) {
	slog.Info("subject healed",
		"target", t.ID(),
		"caster", c.CasterID(),
		"ability", c.AbilityID,
		"amount", amount)
}
