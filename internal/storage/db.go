// Package storage persists users, events, valuations, the report cache,
// settings and notifier dedup state on SQLite or PostgreSQL through sqlx.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"valubot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is safe for concurrent use.
type DB struct {
	x      *sqlx.DB
	driver string
	clock  clockwork.Clock
	log    logx.Logger

	dedupWrites atomic.Uint64
	pruneEvery  uint64
}

type Option func(*DB)

// WithClock sets the clock used for row timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(db *DB) {
		if c != nil {
			db.clock = c
		}
	}
}

// Open connects, applies pragmas and runs the embedded migration for the
// configured driver (sqlite when empty).
func Open(ctx context.Context, cfg Config, log logx.Logger, opts ...Option) (*DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	var (
		x   *sqlx.DB
		err error
	)
	switch driver {
	case "", DriverSQLite, "sqlite3":
		driver = DriverSQLite
		x, err = openSQLite(ctx, cfg)
	case DriverPostgres, "postgresql", "pg":
		driver = DriverPostgres
		x, err = openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{x: x, driver: driver, clock: clockwork.NewRealClock(), log: log, pruneEvery: 500}
	for _, o := range opts {
		o(db)
	}
	if err := db.migrate(ctx); err != nil {
		_ = x.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", driver))
	return db, nil
}

func openSQLite(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create dir: %w", err)
		}
	}
	x, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// One connection serializes writers and keeps pragmas on the only session.
	x.SetMaxOpenConns(1)
	x.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := x.ExecContext(ctx, p); err != nil {
			_ = x.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}
	return x, nil
}

func openPostgres(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage: postgres dsn is required")
	}
	x, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	x.SetMaxOpenConns(10)
	x.SetConnMaxIdleTime(5 * time.Minute)
	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	return x, nil
}

func (db *DB) migrate(ctx context.Context) error {
	script, err := migrationsFS.ReadFile("migrations/" + db.driver + ".sql")
	if err != nil {
		return fmt.Errorf("storage: migration script: %w", err)
	}
	if _, err := db.x.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

func (db *DB) Driver() string { return db.driver }

func (db *DB) Close() error {
	if db == nil || db.x == nil {
		return nil
	}
	return db.x.Close()
}

func (db *DB) now() time.Time { return db.clock.Now() }

// q rewrites ? placeholders for the active driver.
func (db *DB) q(query string) string { return db.x.Rebind(query) }

// inTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.x.BeginTxx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, err)
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("storage: %s: %w", op, err)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
