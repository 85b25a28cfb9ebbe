// Package data loads content packs from YAML: stat definitions, roles, bonuses,
// mob templates with their spawns, and ability trees.
package data

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/skillflow/internal/stat"
)

// StatPack is the parsed content of stats.yaml.
type StatPack struct {
	Definitions []stat.Definition
	Roles       []stat.Role
	Bonuses     []stat.Bonus
}

type statsFile struct {
	Stats   []statDef                         `yaml:"stats"`
	Roles   map[string]map[string]roleStatDef `yaml:"roles"`
	Bonuses []bonusDef                        `yaml:"bonuses"`
}

type statDef struct {
	ID      string   `yaml:"id"`
	Kind    string   `yaml:"kind"`
	Domain  string   `yaml:"domain"` // real | integer
	Default float64  `yaml:"default"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Formula string   `yaml:"formula"`
}

type roleStatDef struct {
	Base     float64   `yaml:"base"`
	PerLevel float64   `yaml:"per_level"`
	Growth   string    `yaml:"growth"`
	Table    []float64 `yaml:"table"`
}

type bonusDef struct {
	Source  string `yaml:"source"`
	Target  string `yaml:"target"`
	Formula string `yaml:"formula"`
}

// LoadStats reads a stats file. A missing file yields an empty pack.
func LoadStats(path string) (*StatPack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &StatPack{}, nil
		}
		return nil, fmt.Errorf("reading stats %s: %w", path, err)
	}
	return ParseStats(raw)
}

// ParseStats parses stats YAML.
func ParseStats(raw []byte) (*StatPack, error) {
	var f statsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}

	pack := &StatPack{}
	for i, d := range f.Stats {
		if d.ID == "" {
			return nil, fmt.Errorf("stat #%d: missing id", i)
		}
		kind, err := stat.ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", d.ID, err)
		}
		domain := stat.DomainReal
		switch strings.ToLower(d.Domain) {
		case "", "real", "float":
		case "integer", "int":
			domain = stat.DomainInteger
		default:
			return nil, fmt.Errorf("stat %s: unknown domain %q", d.ID, d.Domain)
		}
		pack.Definitions = append(pack.Definitions, stat.Definition{
			ID:      d.ID,
			Kind:    kind,
			Domain:  domain,
			Default: d.Default,
			Min:     d.Min,
			Max:     d.Max,
			Formula: d.Formula,
		})
	}

	for _, name := range slices.Sorted(maps.Keys(f.Roles)) {
		role := stat.Role{Name: name, Stats: make(map[string]stat.RoleStat, len(f.Roles[name]))}
		for id, rs := range f.Roles[name] {
			role.Stats[id] = stat.RoleStat{
				Base:     rs.Base,
				PerLevel: rs.PerLevel,
				Growth:   rs.Growth,
				Table:    rs.Table,
			}
		}
		pack.Roles = append(pack.Roles, role)
	}

	for _, b := range f.Bonuses {
		pack.Bonuses = append(pack.Bonuses, stat.Bonus{Source: b.Source, Target: b.Target, Formula: b.Formula})
	}
	return pack, nil
}

// Apply registers the pack on e. Invalid entries are reported together; valid
// ones are still registered. Dependency cycles are logged, not rejected: they
// resolve to zero at runtime.
func (p *StatPack) Apply(e *stat.Engine) error {
	var errs []error
	if err := e.Define(p.Definitions...); err != nil {
		errs = append(errs, err)
	}
	for _, r := range p.Roles {
		if err := e.DefineRole(r); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range p.Bonuses {
		if err := e.AddBonus(b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.ValidateGraph(); err != nil {
		slog.Warn("stat graph has cycles", "error", err)
	}

	slog.Info("loaded stats",
		"definitions", len(p.Definitions),
		"roles", len(p.Roles),
		"bonuses", len(p.Bonuses))
	return errors.Join(errs...)
}
