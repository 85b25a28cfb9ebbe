package data

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/skillflow/internal/params"
	"github.com/udisondev/skillflow/internal/skill"
)

// AbilityConfig is one raw ability tree with where it came from.
type AbilityConfig struct {
	ID   string
	File string
	Tree params.Tree
}

type abilitiesFile struct {
	Abilities map[string]map[string]any `yaml:"abilities"`
}

// LoadAbilities reads every *.yaml / *.yml file of dir. A missing dir yields
// nothing. Ids must be unique across files.
func LoadAbilities(dir string) ([]AbilityConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading abilities dir %s: %w", dir, err)
	}

	var (
		out  []AbilityConfig
		seen = make(map[string]string)
	)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		configs, err := ParseAbilities(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, c := range configs {
			if prev, dup := seen[c.ID]; dup {
				return nil, fmt.Errorf("ability %s defined in %s and %s", c.ID, prev, path)
			}
			seen[c.ID] = path
			c.File = path
			out = append(out, c)
		}
	}
	return out, nil
}

// ParseAbilities parses one abilities document, ordered by id.
func ParseAbilities(raw []byte) ([]AbilityConfig, error) {
	var f abilitiesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing abilities: %w", err)
	}
	out := make([]AbilityConfig, 0, len(f.Abilities))
	for _, id := range slices.Sorted(maps.Keys(f.Abilities)) {
		out = append(out, AbilityConfig{ID: id, Tree: params.Tree(f.Abilities[id])})
	}
	return out, nil
}

// BuildAbilities turns configs into abilities and adds them to lib. A config that
// fails to build is skipped and reported; the others still load.
func BuildAbilities(configs []AbilityConfig, b *skill.Builder, lib *skill.Library) (int, error) {
	var (
		errs  []error
		built int
	)
	for _, c := range configs {
		a, err := b.Ability(c.ID, c.Tree)
		if err != nil {
			errs = append(errs, fmt.Errorf("ability %s (%s): %w", c.ID, c.File, err))
			continue
		}
		lib.Add(a)
		built++
	}

	slog.Info("loaded abilities", "count", built, "failed", len(errs), "library", lib.Len())
	return built, errors.Join(errs...)
}
