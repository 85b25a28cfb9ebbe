package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/udisondev/skillflow/internal/profile"
	"github.com/udisondev/skillflow/internal/stat"
)

// SQLiteProfiles implements profile.Repository on an embedded SQLite file.
type SQLiteProfiles struct {
	db *sql.DB
}

var _ Store = (*SQLiteProfiles)(nil)

// NewSQLiteProfiles wraps a migrated database.
func NewSQLiteProfiles(db *sql.DB) *SQLiteProfiles {
	return &SQLiteProfiles{db: db}
}

// Close closes the database.
func (r *SQLiteProfiles) Close() {
	_ = r.db.Close()
}

// Load returns profile.ErrNotFound for unknown ids.
func (r *SQLiteProfiles) Load(ctx context.Context, id string) (profile.Record, error) {
	rec := profile.Record{
		ID:        id,
		Stats:     map[string]float64{},
		Equipment: map[string]float64{},
	}

	var updated int64
	err := r.db.QueryRowContext(ctx,
		`SELECT name, level, updated_at FROM profiles WHERE id = ?`, id,
	).Scan(&rec.Name, &rec.Level, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Record{}, fmt.Errorf("profile %s: %w", id, profile.ErrNotFound)
		}
		return profile.Record{}, fmt.Errorf("querying profile %s: %w", id, err)
	}
	if updated > 0 {
		rec.UpdatedAt = time.UnixMilli(updated)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT source, stat_id, value FROM profile_stats WHERE profile_id = ?`, id)
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

	roleRows, err := r.db.QueryContext(ctx,
		`SELECT role, weight FROM profile_roles WHERE profile_id = ? ORDER BY position`, id)
	if err != nil {
		return profile.Record{}, fmt.Errorf("querying roles for profile %s: %w", id, err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var ra stat.RoleAssignment
		if err := roleRows.Scan(&ra.Role, &ra.Weight); err != nil {
			return profile.Record{}, fmt.Errorf("scanning role row: %w", err)
		}
		rec.Roles = append(rec.Roles, ra)
	}
	if err := roleRows.Err(); err != nil {
		return profile.Record{}, fmt.Errorf("iterating role rows: %w", err)
	}
	return rec, nil
}

// Save replaces the stored profile in one transaction.
func (r *SQLiteProfiles) Save(ctx context.Context, rec profile.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for profile %s: %w", rec.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var updated int64
	if !rec.UpdatedAt.IsZero() {
		updated = rec.UpdatedAt.UnixMilli()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (id, name, level, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, level = excluded.level, updated_at = excluded.updated_at`,
		rec.ID, rec.Name, rec.Level, updated,
	); err != nil {
		return fmt.Errorf("upserting profile %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_stats WHERE profile_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("deleting stats for profile %s: %w", rec.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_roles WHERE profile_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("deleting roles for profile %s: %w", rec.ID, err)
	}

	for _, row := range statRows(rec) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_stats (profile_id, source, stat_id, value) VALUES (?, ?, ?, ?)`,
			rec.ID, row.source, row.statID, row.value,
		); err != nil {
			return fmt.Errorf("inserting stat %s: %w", row.statID, err)
		}
	}
	for i, ra := range rec.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_roles (profile_id, position, role, weight) VALUES (?, ?, ?, ?)`,
			rec.ID, i, ra.Role, ra.Weight,
		); err != nil {
			return fmt.Errorf("inserting role %s: %w", ra.Role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction for profile %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes a profile; stats and roles cascade.
func (r *SQLiteProfiles) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}
