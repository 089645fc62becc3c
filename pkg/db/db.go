package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inventoryd/pkg/db/migrations"
)

const (
	// DefaultTimeout is used when executing queries to avoid leaking resources on hung calls.
	DefaultTimeout = 5 * time.Second

	// BusyTimeout is how long a connection waits on a locked database before failing.
	BusyTimeout = 5 * time.Second

	defaultMaxOpenConns = 8
)

// Config describes the on-disk database.
type Config struct {
	Path         string
	MaxOpenConns int
	Logger       logger.Interface
}

// Open opens (creating if needed) the SQLite file at cfg.Path, applies the
// connection pragmas and brings the schema up to date.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	gdb, err := gorm.Open(sqlite.Open(DSN(cfg.Path)), &gorm.Config{
		Logger:                 cfg.Logger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := Ping(ctx, gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := Initialize(ctx, gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return gdb, nil
}

// DSN builds the driver connection string for path. Every pooled connection
// gets the same pragma set.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Initialize applies every pending migration. Running it against an
// up-to-date database is a no-op.
func Initialize(ctx context.Context, gdb *gorm.DB) error {
	if gdb == nil {
		return errors.New("nil database provided")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, nil,
		goose.WithGoMigrations(migrations.All()...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// WithTimeout runs fn with ctx bounded by timeout and cancels it when fn
// returns.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Ping ensures the database is reachable with the default timeout.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
