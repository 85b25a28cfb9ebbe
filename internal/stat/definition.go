package stat

import (
	"fmt"
	"strings"
)

// Kind selects how a stat's accumulated value is shaped at the end of resolution.
type Kind int8

const (
	KindPlain       Kind = iota // accumulated value as is
	KindFormula                 // own formula evaluated against the subject
	KindResource                // pool maximum (health, mana); never negative
	KindNative                  // host attribute passthrough
	KindProbability             // percentage, clamped to [0,100]
)

var kindNames = map[Kind]string{
	KindPlain:       "plain",
	KindFormula:     "formula",
	KindResource:    "resource",
	KindNative:      "native",
	KindProbability: "probability",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int8(k))
}

// ParseKind converts a config string to Kind. Empty means plain.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain", "default":
		return KindPlain, nil
	case "formula", "derived":
		return KindFormula, nil
	case "resource", "minmax":
		return KindResource, nil
	case "native", "attribute":
		return KindNative, nil
	case "probability", "chance":
		return KindProbability, nil
	}
	return KindPlain, fmt.Errorf("unknown stat kind %q", s)
}

// Domain is the numeric domain of a stat.
type Domain int8

const (
	DomainReal    Domain = iota
	DomainInteger        // rounded to nearest after shaping
)

// Definition describes one stat. Immutable after registration.
type Definition struct {
	ID      string
	Kind    Kind
	Domain  Domain
	Default float64
	Min     *float64 // optional clamp bounds
	Max     *float64
	Formula string // KindFormula only; may reference value, level and other stat ids
}

// Bound is a helper for building optional clamp bounds in literals.
func Bound(v float64) *float64 {
	return &v
}

func (d Definition) clamp(v float64) float64 {
	if d.Min != nil && v < *d.Min {
		v = *d.Min
	}
	if d.Max != nil && v > *d.Max {
		v = *d.Max
	}
	return v
}
