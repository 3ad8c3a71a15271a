package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/volo-kola/kola/internal/domain"
)

// ─── Learner Repository ─────────────────────────────────────────────────────

const userColumns = `id, display_name, hearts, hearts_updated_at, total_xp,
	current_streak, longest_streak, last_activity_at, lessons_completed,
	exercises_completed, perfect_lessons, challenges_claimed, version, created_at`

// CreateUser inserts a new learner row at version 1.
func (d *DB) CreateUser(ctx context.Context, u domain.User) error {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, hearts, hearts_updated_at, total_xp,
			current_streak, longest_streak, last_activity_at, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.DisplayName, u.Hearts, millis(u.HeartsUpdatedAt), u.TotalXP,
		u.CurrentStreak, u.LongestStreak, nullableMillis(u.LastActivityDate),
		millis(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, u.ID)
	}
	return nil
}

// GetUser reads a learner outside any transaction.
func (d *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, d.db, id)
}

// GetUser reads the learner row. The transaction already holds the only
// connection, so the read is effectively locked until commit.
func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, t.q, id)
}

// UpdateUser writes every mutable counter if the version still matches.
func (t *tx) UpdateUser(ctx context.Context, u domain.User) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE users SET
			display_name = ?, hearts = ?, hearts_updated_at = ?, total_xp = ?,
			current_streak = ?, longest_streak = ?, last_activity_at = ?,
			lessons_completed = ?, exercises_completed = ?, perfect_lessons = ?,
			challenges_claimed = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		u.DisplayName, u.Hearts, millis(u.HeartsUpdatedAt), u.TotalXP,
		u.CurrentStreak, u.LongestStreak, nullableMillis(u.LastActivityDate),
		u.LessonsCompleted, u.ExercisesCompleted, u.PerfectLessons,
		u.ChallengesClaimed, u.ID, u.Version,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := getUser(ctx, t.q, u.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: user %s version %d", domain.ErrConcurrentUpdate, u.ID, u.Version)
	}
	return nil
}

func getUser(ctx context.Context, q querier, id string) (*domain.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var heartsAt, createdAt int64
	var lastActivity sql.NullInt64

	err := s.Scan(&u.ID, &u.DisplayName, &u.Hearts, &heartsAt, &u.TotalXP,
		&u.CurrentStreak, &u.LongestStreak, &lastActivity, &u.LessonsCompleted,
		&u.ExercisesCompleted, &u.PerfectLessons, &u.ChallengesClaimed,
		&u.Version, &createdAt)
	if err != nil {
		return nil, err
	}

	u.HeartsUpdatedAt = fromMillis(heartsAt)
	u.CreatedAt = fromMillis(createdAt)
	u.LastActivityDate = timePtr(lastActivity)
	return &u, nil
}
