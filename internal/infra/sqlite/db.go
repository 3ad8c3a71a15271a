// Package sqlite provides SQLite-based persistent storage for Kola.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/volo-kola/kola/internal/domain"
)

// FileName is the database file created inside the data directory.
const FileName = "kola.db"

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.Store.
type DB struct {
	db *sql.DB
}

var _ domain.Store = (*DB)(nil)

// Open creates or opens the SQLite database at dir/kola.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite is single-writer. One connection also serializes InTx callers,
	// which is what gives per-learner read-modify-write atomicity here.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// migrate runs idempotent schema migrations.
// All timestamps are stored as Unix milliseconds.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			display_name        TEXT NOT NULL DEFAULT '',
			hearts              INTEGER NOT NULL,
			hearts_updated_at   INTEGER NOT NULL,
			total_xp            INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			current_streak      INTEGER NOT NULL DEFAULT 0,
			longest_streak      INTEGER NOT NULL DEFAULT 0,
			last_activity_at    INTEGER,
			lessons_completed   INTEGER NOT NULL DEFAULT 0,
			exercises_completed INTEGER NOT NULL DEFAULT 0,
			perfect_lessons     INTEGER NOT NULL DEFAULT 0,
			challenges_claimed  INTEGER NOT NULL DEFAULT 0,
			version             INTEGER NOT NULL DEFAULT 1,
			created_at          INTEGER NOT NULL
		)`,

		// Append-only XP ledger
		`CREATE TABLE IF NOT EXISTS xp_grants (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			amount     INTEGER NOT NULL CHECK (amount > 0),
			source     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_ts ON xp_grants(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_ts ON xp_grants(created_at)`,

		// Daily challenges, one per (user, day, type)
		`CREATE TABLE IF NOT EXISTS challenges (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			day         TEXT NOT NULL,
			type        TEXT NOT NULL,
			description TEXT NOT NULL,
			target      INTEGER NOT NULL,
			progress    INTEGER NOT NULL DEFAULT 0,
			reward_xp   INTEGER NOT NULL,
			completed   BOOLEAN NOT NULL DEFAULT 0,
			claimed     BOOLEAN NOT NULL DEFAULT 0,
			claimed_at  INTEGER,
			UNIQUE (user_id, day, type)
		)`,

		// Unlocked achievements
		`CREATE TABLE IF NOT EXISTS achievements (
			user_id     TEXT NOT NULL REFERENCES users(id),
			code        TEXT NOT NULL,
			unlocked_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, code)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Transactions ───────────────────────────────────────────────────────────

// InTx runs fn inside a single transaction. fn must only use the Tx it is
// handed: the pool has one connection and the transaction holds it.
func (d *DB) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// tx implements domain.Tx on top of *sql.Tx.
type tx struct {
	q querier
}

var _ domain.Tx = (*tx)(nil)

// ─── Helpers ────────────────────────────────────────────────────────────────

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}
