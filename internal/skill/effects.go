package skill

import (
	"fmt"
	"strings"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/params"
)

func registerEffects(r *Registries) {
	for _, kind := range []string{"particle", "sound", "message"} {
		r.Effects.Register(kind, func(p params.Tree) (Effect, error) {
			return newFeedbackEffect(kind, p)
		})
	}
}

// newFeedbackEffect forwards a presentation event to the host. Messages expand
// {caster} and {var} placeholders.
func newFeedbackEffect(kind string, p params.Tree) (Effect, error) {
	name := p.String("name", "")
	if kind == "message" {
		name = p.String("text", name)
	}
	if name == "" {
		return nil, fmt.Errorf("%s: name is required", kind)
	}
	return EffectFunc(func(rt *Runtime, c *Context) error {
		if rt.Host == nil {
			return nil
		}
		fb := Feedback{
			Kind:    kind,
			Name:    name,
			Params:  p,
			Context: c,
			At:      feedbackPoints(rt, c),
		}
		if kind == "message" {
			fb.Name = expandMessage(name, c)
		}
		rt.Host.Feedback(fb)
		return nil
	}), nil
}

func feedbackPoints(rt *Runtime, c *Context) []model.Location {
	targets := rt.Targets(c)
	if len(targets) == 0 {
		return append([]model.Location(nil), c.Locations...)
	}
	out := make([]model.Location, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Location)
	}
	return out
}

func expandMessage(text string, c *Context) string {
	if !strings.Contains(text, "{") {
		return text
	}
	pairs := []string{"{caster}", c.Snapshot.Name()}
	for k, v := range c.Vars {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
