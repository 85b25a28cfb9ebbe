package data

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/skillflow/internal/model"
	"github.com/udisondev/skillflow/internal/spawn"
	"github.com/udisondev/skillflow/internal/stat"
	"github.com/udisondev/skillflow/internal/world"
)

// MobPack is the parsed content of mobs.yaml.
type MobPack struct {
	Templates map[string]world.MobTemplate
	Spawns    []spawn.Point
}

type mobsFile struct {
	Templates map[string]mobDef `yaml:"templates"`
	Spawns    []spawnDef        `yaml:"spawns"`
}

type mobDef struct {
	Name       string             `yaml:"name"`
	Level      int                `yaml:"level"`
	Stats      map[string]float64 `yaml:"stats"`
	Roles      []roleDef          `yaml:"roles"`
	HealthStat string             `yaml:"health_stat"`
	Abilities  []string           `yaml:"abilities"`
}

type roleDef struct {
	Role   string  `yaml:"role"`
	Weight float64 `yaml:"weight"`
}

type spawnDef struct {
	Mob    string    `yaml:"mob"`
	At     []float64 `yaml:"at"`     // x, y[, z]
	Facing []float64 `yaml:"facing"` // x, y
	Count  int       `yaml:"count"`
	// Respawn delay in ticks; respawn_max defaults to respawn_min.
	RespawnMin int `yaml:"respawn_min"`
	RespawnMax int `yaml:"respawn_max"`
}

// LoadMobs reads a mobs file. A missing file yields an empty pack.
func LoadMobs(path string) (*MobPack, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &MobPack{Templates: map[string]world.MobTemplate{}}, nil
		}
		return nil, fmt.Errorf("reading mobs %s: %w", path, err)
	}
	return ParseMobs(raw)
}

// ParseMobs parses mobs YAML. Spawns must reference a known template.
func ParseMobs(raw []byte) (*MobPack, error) {
	var f mobsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing mobs: %w", err)
	}

	pack := &MobPack{Templates: make(map[string]world.MobTemplate, len(f.Templates))}
	for _, key := range slices.Sorted(maps.Keys(f.Templates)) {
		d := f.Templates[key]
		name := d.Name
		if name == "" {
			name = key
		}
		t := world.MobTemplate{
			Name:       name,
			Level:      d.Level,
			Stats:      d.Stats,
			HealthStat: d.HealthStat,
			Abilities:  d.Abilities,
		}
		for _, r := range d.Roles {
			w := r.Weight
			if w == 0 {
				w = 1
			}
			t.Roles = append(t.Roles, stat.RoleAssignment{Role: r.Role, Weight: w})
		}
		pack.Templates[key] = t
	}

	for i, s := range f.Spawns {
		t, ok := pack.Templates[s.Mob]
		if !ok {
			return nil, fmt.Errorf("spawn #%d: unknown mob %q", i, s.Mob)
		}
		if len(s.At) < 2 || len(s.At) > 3 {
			return nil, fmt.Errorf("spawn #%d: at needs 2 or 3 coordinates, got %d", i, len(s.At))
		}
		if s.RespawnMin < 0 || s.RespawnMax < 0 {
			return nil, fmt.Errorf("spawn #%d: negative respawn delay", i)
		}
		pack.Spawns = append(pack.Spawns, spawn.Point{
			Template:   t,
			Location:   model.NewLocation(coord(s.At, 0), coord(s.At, 1), coord(s.At, 2)),
			Forward:    model.Vector{X: coord(s.Facing, 0), Y: coord(s.Facing, 1)},
			Maximum:    max(s.Count, 1),
			RespawnMin: s.RespawnMin,
			RespawnMax: max(s.RespawnMax, s.RespawnMin),
		})
	}
	return pack, nil
}

func coord(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// AddPoints registers every spawn entry with mgr and returns how many.
func (p *MobPack) AddPoints(mgr *spawn.Manager) int {
	for _, pt := range p.Spawns {
		mgr.AddPoint(pt)
	}
	slog.Info("spawn points loaded", "templates", len(p.Templates), "points", len(p.Spawns))
	return len(p.Spawns)
}
