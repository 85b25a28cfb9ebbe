package combat

import (
	"fmt"
	"strings"
)

// Tag selects which modifiers of the pipeline apply to a hit. Tags are bit flags.
type Tag uint8

const (
	TagPhysical      Tag = 1 << iota // adds attacker physicalDamage
	TagMagic                         // adds attacker magicDamage
	TagTrue                          // no crit, no defense
	TagIgnoreDefense                 // no defense
)

var tagNames = []struct {
	tag  Tag
	name string
}{
	{TagPhysical, "PHYSICAL"},
	{TagMagic, "MAGIC"},
	{TagTrue, "TRUE"},
	{TagIgnoreDefense, "IGNORE_DEFENSE"},
}

// Has reports whether every bit of other is set.
func (t Tag) Has(other Tag) bool {
	return t&other == other && other != 0
}

func (t Tag) String() string {
	if t == 0 {
		return "NONE"
	}
	var parts []string
	for _, tn := range tagNames {
		if t&tn.tag != 0 {
			parts = append(parts, tn.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTag converts a config name (case-insensitive, "-" or "_") to a Tag.
func ParseTag(s string) (Tag, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for _, tn := range tagNames {
		if tn.name == norm {
			return tn.tag, nil
		}
	}
	return 0, fmt.Errorf("unknown damage tag %q", s)
}

// ParseTags combines several tag names. Unknown names fail the whole set.
func ParseTags(names []string) (Tag, error) {
	var t Tag
	for _, n := range names {
		tag, err := ParseTag(n)
		if err != nil {
			return 0, err
		}
		t |= tag
	}
	return t, nil
}
