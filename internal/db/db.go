// Package db stores player profiles in PostgreSQL (pgx) or SQLite (modernc).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/udisondev/skillflow/internal/profile"
)

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// stat sources in profile_stats.source
const (
	sourceBase      = "base"
	sourceEquipment = "equipment"
)

// Store is a migrated profile repository that owns its connections.
type Store interface {
	profile.Repository
	Close()
}

// Open connects to the configured driver, applies migrations and returns the store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "pgx", "postgresql":
		pool, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("profile storage ready", "driver", DriverPostgres)
		return NewPostgresProfiles(pool), nil

	case DriverSQLite, "sqlite3":
		sqlDB, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if err := Migrate(ctx, sqlDB, DialectSQLite); err != nil {
			sqlDB.Close()
			return nil, err
		}
		slog.Info("profile storage ready", "driver", DriverSQLite, "path", dsn)
		return NewSQLiteProfiles(sqlDB), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", driver)
}

// OpenPostgres connects to PostgreSQL and pings it.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// OpenSQLite opens a SQLite file with foreign keys on. One connection serialises
// writers.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}
	return sqlDB, nil
}
