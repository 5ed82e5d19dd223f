package database

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/alexivanou/geoquery/internal/config"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver for database/sql
	"github.com/jmoiron/sqlx"
	sqlite "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLiteDriver is go-sqlite3 with LOWER() replaced by a Unicode-aware version, so
// case-insensitive matching folds "Ö" the way strings.ToLower and PostgreSQL do.
// Every connection, including the migration one, must use it: expression indexes
// on LOWER(...) are only valid under a single definition of the function.
const SQLiteDriver = "sqlite3_unicode"

func init() {
	sql.Register(SQLiteDriver, &sqlite.SQLiteDriver{
		ConnectHook: func(conn *sqlite.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
	sqlx.BindDriver(SQLiteDriver, sqlx.QUESTION)
}

// unicodeLower keeps NULL as NULL and leaves non-text values untouched
func unicodeLower(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return bytes.ToLower(s)
	default:
		return v
	}
}

// DriverName returns the database/sql driver for the configured backend
func DriverName(cfg config.DBConfig) string {
	if cfg.IsSQLite() {
		return SQLiteDriver
	}
	return "pgx"
}

// Connect creates a database connection based on configuration using sqlx
func Connect(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	if cfg.Pool.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Pool.Timeout)
		defer cancel()
	}

	db, err := sqlx.ConnectContext(ctx, DriverName(cfg), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	applyPool(db, cfg)

	// Specific settings for SQLite to enable Foreign Keys
	if cfg.IsSQLite() {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return db, nil
}

func applyPool(db *sqlx.DB, cfg config.DBConfig) {
	pool := cfg.Pool
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	idle := pool.MinIdle
	if idle < 1 {
		idle = 1
	}
	db.SetMaxIdleConns(idle)

	// a shared in-memory database disappears with its last connection
	if cfg.IsMemory() {
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}
}

// NewMigrator opens a dedicated connection and returns a migrate instance over the
// embedded migrations of the configured backend. Closing it closes that connection.
// In-memory databases stay alive as long as another connection to them is open.
func NewMigrator(ctx context.Context, cfg config.DBConfig) (*migrate.Migrate, error) {
	db, err := sqlx.ConnectContext(ctx, DriverName(cfg), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect for migrations: %w", err)
	}

	var (
		driver migratedb.Driver
		dir    string
		name   string
	)
	if cfg.IsSQLite() {
		dir, name = "migrations/sqlite", "sqlite3"
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	} else {
		dir, name = "migrations/postgres", "postgres"
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create %s driver: %w", name, err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, name, driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

// Migrate applies all pending migrations
func Migrate(ctx context.Context, cfg config.DBConfig) error {
	m, err := NewMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
