package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SKILLFLOW_TICK_INTERVAL.
const EnvPrefix = "SKILLFLOW_"

// Server holds all configuration for the skill server.
type Server struct {
	// Logging
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	Debug    bool   `yaml:"debug" env:"DEBUG"` // hot-path debug logs (flow, damage, loader)

	// Simulation
	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	DefenseConstant float64       `yaml:"defense_constant" env:"DEFENSE_CONSTANT"`
	BuffLimit       int           `yaml:"buff_limit" env:"BUFF_LIMIT"`
	CellSize        float64       `yaml:"cell_size" env:"CELL_SIZE"`

	// Content
	DataDir   string `yaml:"data_dir" env:"DATA_DIR"`
	ScriptDir string `yaml:"script_dir" env:"SCRIPT_DIR"`

	// Storage
	Storage       StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`
	LoaderWorkers int           `yaml:"loader_workers" env:"LOADER_WORKERS"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"` // 0 disables periodic flush
}

// StorageConfig selects the profile store.
type StorageConfig struct {
	Driver   string         `yaml:"driver" env:"DRIVER"` // postgres | sqlite
	Path     string         `yaml:"path" env:"PATH"`     // sqlite file
	Database DatabaseConfig `yaml:"database" envPrefix:"DB_"`
}

// DSN returns the connection string for the selected driver.
func (s StorageConfig) DSN() string {
	if strings.EqualFold(s.Driver, "sqlite") {
		return s.Path
	}
	return s.Database.DSN()
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel:        "info",
		TickInterval:    50 * time.Millisecond,
		DefenseConstant: 400,
		BuffLimit:       24,
		CellSize:        32,
		DataDir:         "data",
		ScriptDir:       "scripts",
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "skillflow.db",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "skillflow",
				Password: "skillflow",
				DBName:   "skillflow",
				SSLMode:  "disable",
			},
		},
		LoaderWorkers: 4,
		FlushInterval: time.Minute,
	}
}

// LoadServer loads config from a YAML file, then applies SKILLFLOW_* environment
// overrides. If the file doesn't exist, defaults are used.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (s Server) Validate() error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", s.TickInterval)
	}
	if s.DefenseConstant <= 0 {
		return fmt.Errorf("defense_constant must be positive, got %v", s.DefenseConstant)
	}
	if s.LoaderWorkers <= 0 {
		return fmt.Errorf("loader_workers must be positive, got %d", s.LoaderWorkers)
	}
	if s.FlushInterval < 0 {
		return fmt.Errorf("flush_interval must not be negative, got %s", s.FlushInterval)
	}
	switch strings.ToLower(s.Storage.Driver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", s.Storage.Driver)
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps debug|info|warn|error to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
