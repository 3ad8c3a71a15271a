// Package postgres is the multi-instance Kola store on PostgreSQL.
// Learner rows are locked with SELECT ... FOR UPDATE inside InTx and every
// user write is version-checked, so concurrent requests for the same learner
// serialize on the row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volo-kola/kola/internal/domain"
)

// Options tunes the connection pool. Zero values keep pgxpool defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store implements domain.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.Store = (*Store)(nil)

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id                  TEXT PRIMARY KEY,
			display_name        TEXT NOT NULL DEFAULT '',
			hearts              INTEGER NOT NULL,
			hearts_updated_at   TIMESTAMPTZ NOT NULL,
			total_xp            BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			current_streak      INTEGER NOT NULL DEFAULT 0,
			longest_streak      INTEGER NOT NULL DEFAULT 0,
			last_activity_at    TIMESTAMPTZ,
			lessons_completed   INTEGER NOT NULL DEFAULT 0,
			exercises_completed INTEGER NOT NULL DEFAULT 0,
			perfect_lessons     INTEGER NOT NULL DEFAULT 0,
			challenges_claimed  INTEGER NOT NULL DEFAULT 0,
			version             BIGINT NOT NULL DEFAULT 1,
			created_at          TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS xp_grants (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			amount     BIGINT NOT NULL CHECK (amount > 0),
			source     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_user_ts ON xp_grants(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_ts ON xp_grants(created_at)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			day         TEXT NOT NULL,
			type        TEXT NOT NULL,
			description TEXT NOT NULL,
			target      INTEGER NOT NULL,
			progress    INTEGER NOT NULL DEFAULT 0,
			reward_xp   BIGINT NOT NULL,
			completed   BOOLEAN NOT NULL DEFAULT FALSE,
			claimed     BOOLEAN NOT NULL DEFAULT FALSE,
			claimed_at  TIMESTAMPTZ,
			UNIQUE (user_id, day, type)
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			user_id     TEXT NOT NULL REFERENCES users(id),
			code        TEXT NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, code)
		)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// InTx runs fn in a READ COMMITTED transaction. Serialization failures and
// deadlocks surface as domain.ErrConcurrentUpdate so the caller retries.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(pgTx pgx.Tx) error {
		return fn(&tx{q: pgTx})
	})
	return classify(err)
}

type tx struct {
	q querier
}

var _ domain.Tx = (*tx)(nil)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", domain.ErrConcurrentUpdate, pgErr.Message)
		}
	}
	return err
}
