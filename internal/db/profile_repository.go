package db

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/skillflow/internal/profile"
	"github.com/udisondev/skillflow/internal/stat"
)

// PostgresProfiles реализует profile.Repository для PostgreSQL.
type PostgresProfiles struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresProfiles)(nil)

// NewPostgresProfiles создаёт repository поверх pgx pool.
func NewPostgresProfiles(pool *pgxpool.Pool) *PostgresProfiles {
	return &PostgresProfiles{pool: pool}
}

// Close closes the pool.
func (r *PostgresProfiles) Close() {
	r.pool.Close()
}

// Load загружает профиль вместе со статами и ролями.
// Возвращает profile.ErrNotFound если профиля нет.
func (r *PostgresProfiles) Load(ctx context.Context, id string) (profile.Record, error) {
	rec := profile.Record{
		ID:        id,
		Stats:     map[string]float64{},
		Equipment: map[string]float64{},
	}

	err := r.pool.QueryRow(ctx,
		`SELECT name, level, updated_at FROM profiles WHERE id = $1`, id,
	).Scan(&rec.Name, &rec.Level, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Record{}, fmt.Errorf("profile %s: %w", id, profile.ErrNotFound)
		}
		return profile.Record{}, fmt.Errorf("querying profile %s: %w", id, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT source, stat_id, value FROM profile_stats WHERE profile_id = $1`, id)
	if err != nil {
		return profile.Record{}, fmt.Errorf("querying stats for profile %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var source, statID string
		var value float64
		if err := rows.Scan(&source, &statID, &value); err != nil {
			return profile.Record{}, fmt.Errorf("scanning stat row: %w", err)
		}
		putStat(&rec, source, statID, value)
	}
	if err := rows.Err(); err != nil {
		return profile.Record{}, fmt.Errorf("iterating stat rows: %w", err)
	}

	roleRows, err := r.pool.Query(ctx,
		`SELECT role, weight FROM profile_roles WHERE profile_id = $1 ORDER BY position`, id)
	if err != nil {
		return profile.Record{}, fmt.Errorf("querying roles for profile %s: %w", id, err)
	}
	rec.Roles, err = pgx.CollectRows(roleRows, func(row pgx.CollectableRow) (stat.RoleAssignment, error) {
		var ra stat.RoleAssignment
		err := row.Scan(&ra.Role, &ra.Weight)
		return ra, err
	})
	if err != nil {
		return profile.Record{}, fmt.Errorf("scanning roles for profile %s: %w", id, err)
	}
	return rec, nil
}

// Save сохраняет профиль целиком в одной транзакции.
func (r *PostgresProfiles) Save(ctx context.Context, rec profile.Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for profile %s: %w", rec.ID, err)
	}
	defer func() {
		// Rollback after commit is expected to fail
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		INSERT INTO profiles (id, name, level, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, level = $3, updated_at = $4`,
		rec.ID, rec.Name, rec.Level, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upserting profile %s: %w", rec.ID, err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM profile_stats WHERE profile_id = $1`, rec.ID)
	batch.Queue(`DELETE FROM profile_roles WHERE profile_id = $1`, rec.ID)
	for _, row := range statRows(rec) {
		batch.Queue(`INSERT INTO profile_stats (profile_id, source, stat_id, value) VALUES ($1, $2, $3, $4)`,
			rec.ID, row.source, row.statID, row.value)
	}
	for i, ra := range rec.Roles {
		batch.Queue(`INSERT INTO profile_roles (profile_id, position, role, weight) VALUES ($1, $2, $3, $4)`,
			rec.ID, i, ra.Role, ra.Weight)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving stats and roles for profile %s: %w", rec.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction for profile %s: %w", rec.ID, err)
	}
	return nil
}

// Delete удаляет профиль; статы и роли удаляются каскадом.
func (r *PostgresProfiles) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}

type statRow struct {
	source string
	statID string
	value  float64
}

// statRows flattens base and equipment stats in a stable order.
func statRows(rec profile.Record) []statRow {
	rows := make([]statRow, 0, len(rec.Stats)+len(rec.Equipment))
	for _, id := range slices.Sorted(maps.Keys(rec.Stats)) {
		rows = append(rows, statRow{sourceBase, id, rec.Stats[id]})
	}
	for _, id := range slices.Sorted(maps.Keys(rec.Equipment)) {
		rows = append(rows, statRow{sourceEquipment, id, rec.Equipment[id]})
	}
	return rows
}

func putStat(rec *profile.Record, source, statID string, value float64) {
	if source == sourceEquipment {
		rec.Equipment[statID] = value
		return
	}
	rec.Stats[statID] = value
}
