package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/tofu-suite/tofu/internal/infrastructure/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Driver names as registered with database/sql
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps sqlx.DB and provides additional functionality
type DB struct {
	DB *sqlx.DB
}

// New creates a new PostgreSQL connection
func New(cfg config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Open(DriverPostgres, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return ping(db)
}

// NewSQLite opens (and creates) the SQLite database file at path
func NewSQLite(cfg config.SQLiteConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverSQLite, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	return ping(db)
}

func ping(db *sqlx.DB) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// HealthCheck checks database health
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// GetConnectionInfo returns connection pool statistics
func (db *DB) GetConnectionInfo() map[string]interface{} {
	stats := db.DB.Stats()

	return map[string]interface{}{
		"driver":               db.DB.DriverName(),
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}
}

// MigrationStatus reports the schema version
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// MigrateUp applies every pending schema migration. It reports false when
// the schema was already current.
func (db *DB) MigrateUp() (bool, error) {
	m, err := db.migrator()
	if err != nil {
		return false, err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migration up failed: %w", err)
	}
	return true, nil
}

// MigrateDown reverts every schema migration
func (db *DB) MigrateDown() (bool, error) {
	m, err := db.migrator()
	if err != nil {
		return false, err
	}

	if err := m.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migration down failed: %w", err)
	}
	return true, nil
}

// MigrationVersion returns the current schema version
func (db *DB) MigrationVersion() (MigrationStatus, error) {
	m, err := db.migrator()
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// migrator builds a migrate instance over the open connection. The instance
// is not closed: closing it would close db.
func (db *DB) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	var driver database.Driver
	switch name := db.DB.DriverName(); name {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB.DB, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, db.DB.DriverName(), driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}
