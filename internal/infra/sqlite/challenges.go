package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// ─── Daily Challenges ───────────────────────────────────────────────────────

const challengeColumns = `id, user_id, day, type, description, target, progress,
	reward_xp, completed, claimed, claimed_at`

// InsertChallenge is a no-op when (user, day, type) already exists.
func (t *tx) InsertChallenge(ctx context.Context, c domain.Challenge) (bool, error) {
	if _, err := domain.ParseChallengeType(string(c.Type)); err != nil {
		return false, err
	}
	res, err := t.q.ExecContext(ctx,
		`INSERT INTO challenges (id, user_id, day, type, description, target,
			progress, reward_xp, completed, claimed, claimed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, day, type) DO NOTHING`,
		c.ID, c.UserID, c.Day, string(c.Type), c.Description, c.Target,
		c.Progress, c.RewardXP, c.Completed, c.Claimed, nullableMillis(c.ClaimedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert challenge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListChallenges returns one day's challenges ordered by type.
func (t *tx) ListChallenges(ctx context.Context, userID, day string) ([]domain.Challenge, error) {
	return listChallenges(ctx, t.q, userID, day)
}

func (t *tx) GetChallenge(ctx context.Context, userID, id string) (*domain.Challenge, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE user_id = ? AND id = ?`,
		userID, id,
	)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

// UpdateChallengeProgress never touches a claimed challenge.
func (t *tx) UpdateChallengeProgress(ctx context.Context, c domain.Challenge) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE challenges SET progress = ?, completed = ?
		 WHERE user_id = ? AND id = ? AND claimed = 0`,
		c.Progress, c.Completed, c.UserID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	return nil
}

// MarkChallengeClaimed is the at-most-once guard for reward grants.
func (t *tx) MarkChallengeClaimed(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE challenges SET claimed = 1, claimed_at = ?
		 WHERE user_id = ? AND id = ? AND completed = 1 AND claimed = 0`,
		millis(at), userID, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim challenge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func listChallenges(ctx context.Context, q querier, userID, day string) ([]domain.Challenge, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+challengeColumns+` FROM challenges
		 WHERE user_id = ? AND day = ? ORDER BY type ASC`,
		userID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanChallenge(s scanner) (*domain.Challenge, error) {
	var c domain.Challenge
	var typ string
	var claimedAt sql.NullInt64

	err := s.Scan(&c.ID, &c.UserID, &c.Day, &typ, &c.Description, &c.Target,
		&c.Progress, &c.RewardXP, &c.Completed, &c.Claimed, &claimedAt)
	if err != nil {
		return nil, err
	}
	if c.Type, err = domain.ParseChallengeType(typ); err != nil {
		return nil, fmt.Errorf("challenge %s: %w", c.ID, err)
	}
	c.ClaimedAt = timePtr(claimedAt)
	return &c, nil
}
