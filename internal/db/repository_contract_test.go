package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/profile"
	"github.com/udisondev/skillflow/internal/stat"
)

// testRepositoryContract exercises behaviour every profile repository shares.
func testRepositoryContract(t *testing.T, repo profile.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing profile", func(t *testing.T) {
		_, err := repo.Load(ctx, "nobody")
		require.ErrorIs(t, err, profile.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		in := profile.Record{
			ID:        "p-roundtrip",
			Name:      "Aria",
			Level:     7,
			Stats:     map[string]float64{"strength": 12.5, "mana": 40},
			Equipment: map[string]float64{"defense": 8},
			Roles: []stat.RoleAssignment{
				{Role: "warrior", Weight: 1},
				{Role: "mage", Weight: 0.3},
			},
			UpdatedAt: time.UnixMilli(1_700_000_000_000),
		}
		require.NoError(t, repo.Save(ctx, in))

		out, err := repo.Load(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, in.Name, out.Name)
		assert.Equal(t, in.Level, out.Level)
		assert.Equal(t, in.Stats, out.Stats)
		assert.Equal(t, in.Equipment, out.Equipment)
		assert.Equal(t, in.Roles, out.Roles, "role order is preserved")
		assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	})

	t.Run("save replaces", func(t *testing.T) {
		id := "p-replace"
		require.NoError(t, repo.Save(ctx, profile.Record{
			ID: id, Name: "Old", Level: 1,
			Stats: map[string]float64{"a": 1, "b": 2},
			Roles: []stat.RoleAssignment{{Role: "rogue", Weight: 1}},
		}))
		require.NoError(t, repo.Save(ctx, profile.Record{
			ID: id, Name: "New", Level: 2,
			Stats: map[string]float64{"b": 5},
		}))

		out, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "New", out.Name)
		assert.Equal(t, map[string]float64{"b": 5}, out.Stats)
		assert.Empty(t, out.Roles)
		assert.Empty(t, out.Equipment)
	})

	t.Run("delete", func(t *testing.T) {
		id := "p-delete"
		require.NoError(t, repo.Save(ctx, profile.Record{ID: id, Name: "Gone", Level: 1, Stats: map[string]float64{"x": 1}}))
		require.NoError(t, repo.Delete(ctx, id))
		_, err := repo.Load(ctx, id)
		assert.ErrorIs(t, err, profile.ErrNotFound)

		require.NoError(t, repo.Delete(ctx, id), "deleting twice is fine")
	})

	t.Run("manager flush", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		m := profile.NewManager(repo, nil, 2)
		go func() { _ = m.Run(ctx) }()

		p := m.Acquire("p-managed")
		require.Eventually(t, func() bool { return m.Loader().Pending() == 1 }, 5*time.Second, 5*time.Millisecond)
		m.Drain(ctx, 1)
		require.True(t, p.Ready())

		p.SetStat("strength", 9)
		p.SetLevel(5)
		require.NoError(t, m.Flush(ctx))
		assert.False(t, p.Dirty())

		out, err := repo.Load(ctx, "p-managed")
		require.NoError(t, err)
		assert.Equal(t, 5, out.Level)
		assert.Equal(t, 9.0, out.Stats["strength"])
		assert.False(t, out.UpdatedAt.IsZero())
	})
}
