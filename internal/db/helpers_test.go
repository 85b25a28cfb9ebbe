package db

import "github.com/udisondev/skillflow/internal/profile"

func profileWithStats(id string) profile.Record {
	return profile.Record{
		ID:        id,
		Name:      id,
		Level:     1,
		Stats:     map[string]float64{"strength": 3},
		Equipment: map[string]float64{"defense": 1},
	}
}
