package data

import (
	"fmt"
	"path/filepath"
)

// File layout of a data directory.
const (
	StatsFile    = "stats.yaml"
	MobsFile     = "mobs.yaml"
	AbilitiesDir = "abilities"
)

// Pack is everything loaded from one data directory.
type Pack struct {
	Stats     *StatPack
	Mobs      *MobPack
	Abilities []AbilityConfig
}

// LoadDir loads stats.yaml, mobs.yaml and abilities/*.yaml from dir. Missing
// parts are empty.
func LoadDir(dir string) (*Pack, error) {
	stats, err := LoadStats(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, fmt.Errorf("loading data pack %s: %w", dir, err)
	}
	mobs, err := LoadMobs(filepath.Join(dir, MobsFile))
	if err != nil {
		return nil, fmt.Errorf("loading data pack %s: %w", dir, err)
	}
	abilities, err := LoadAbilities(filepath.Join(dir, AbilitiesDir))
	if err != nil {
		return nil, fmt.Errorf("loading data pack %s: %w", dir, err)
	}
	return &Pack{Stats: stats, Mobs: mobs, Abilities: abilities}, nil
}
