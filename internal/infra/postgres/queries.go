package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/volo-kola/kola/internal/domain"
)

// ─── Learners ───────────────────────────────────────────────────────────────

const userColumns = `id, display_name, hearts, hearts_updated_at, total_xp,
	current_streak, longest_streak, last_activity_at, lessons_completed,
	exercises_completed, perfect_lessons, challenges_claimed, version, created_at`

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, display_name, hearts, hearts_updated_at, total_xp,
			current_streak, longest_streak, last_activity_at, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.DisplayName, u.Hearts, u.HeartsUpdatedAt, u.TotalXP,
		u.CurrentStreak, u.LongestStreak, u.LastActivityDate, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUserExists, u.ID)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUser locks the learner row until the transaction ends.
func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, t.q, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (t *tx) UpdateUser(ctx context.Context, u domain.User) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE users SET
			display_name = $1, hearts = $2, hearts_updated_at = $3, total_xp = $4,
			current_streak = $5, longest_streak = $6, last_activity_at = $7,
			lessons_completed = $8, exercises_completed = $9, perfect_lessons = $10,
			challenges_claimed = $11, version = version + 1
		 WHERE id = $12 AND version = $13`,
		u.DisplayName, u.Hearts, u.HeartsUpdatedAt, u.TotalXP,
		u.CurrentStreak, u.LongestStreak, u.LastActivityDate,
		u.LessonsCompleted, u.ExercisesCompleted, u.PerfectLessons,
		u.ChallengesClaimed, u.ID, u.Version,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s version %d", domain.ErrConcurrentUpdate, u.ID, u.Version)
	}
	return nil
}

func getUser(ctx context.Context, q querier, query, id string) (*domain.User, error) {
	var u domain.User
	err := q.QueryRow(ctx, query, id).Scan(&u.ID, &u.DisplayName, &u.Hearts,
		&u.HeartsUpdatedAt, &u.TotalXP, &u.CurrentStreak, &u.LongestStreak,
		&u.LastActivityDate, &u.LessonsCompleted, &u.ExercisesCompleted,
		&u.PerfectLessons, &u.ChallengesClaimed, &u.Version, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ─── XP Ledger ──────────────────────────────────────────────────────────────

func (t *tx) AppendXPGrant(ctx context.Context, g domain.XPGrant) error {
	if !g.Source.Valid() {
		return fmt.Errorf("append xp grant: %w", domain.ErrInvalidInput)
	}
	_, err := t.q.Exec(ctx,
		`INSERT INTO xp_grants (id, user_id, amount, source, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.UserID, g.Amount, string(g.Source), g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append xp grant: %w", err)
	}
	return nil
}

func (s *Store) XPGrants(ctx context.Context, userID string, from, to time.Time) ([]domain.XPGrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, amount, source, created_at FROM xp_grants
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at ASC, id ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query xp grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.XPGrant
	for rows.Next() {
		var g domain.XPGrant
		var source string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Amount, &source, &g.CreatedAt); err != nil {
			return nil, err
		}
		if g.Source, err = domain.ParseXPSource(source); err != nil {
			return nil, fmt.Errorf("xp grant %s: %w", g.ID, err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) Leaderboard(ctx context.Context, from, to time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.display_name, SUM(g.amount)::BIGINT AS xp
		 FROM xp_grants g JOIN users u ON u.id = g.user_id
		 WHERE g.created_at >= $1 AND g.created_at < $2
		 GROUP BY u.id, u.display_name
		 ORDER BY xp DESC, u.id ASC
		 LIMIT $3`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.XP); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Daily Challenges ───────────────────────────────────────────────────────

const challengeColumns = `id, user_id, day, type, description, target, progress,
	reward_xp, completed, claimed, claimed_at`

func (t *tx) InsertChallenge(ctx context.Context, c domain.Challenge) (bool, error) {
	if _, err := domain.ParseChallengeType(string(c.Type)); err != nil {
		return false, err
	}
	tag, err := t.q.Exec(ctx,
		`INSERT INTO challenges (id, user_id, day, type, description, target,
			progress, reward_xp, completed, claimed, claimed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id, day, type) DO NOTHING`,
		c.ID, c.UserID, c.Day, string(c.Type), c.Description, c.Target,
		c.Progress, c.RewardXP, c.Completed, c.Claimed, c.ClaimedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *tx) ListChallenges(ctx context.Context, userID, day string) ([]domain.Challenge, error) {
	return listChallenges(ctx, t.q, userID, day)
}

func (t *tx) GetChallenge(ctx context.Context, userID, id string) (*domain.Challenge, error) {
	row := t.q.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return c, nil
}

func (t *tx) UpdateChallengeProgress(ctx context.Context, c domain.Challenge) error {
	_, err := t.q.Exec(ctx,
		`UPDATE challenges SET progress = $1, completed = $2
		 WHERE user_id = $3 AND id = $4 AND NOT claimed`,
		c.Progress, c.Completed, c.UserID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	return nil
}

// MarkChallengeClaimed is the at-most-once guard for reward grants.
func (t *tx) MarkChallengeClaimed(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`UPDATE challenges SET claimed = TRUE, claimed_at = $1
		 WHERE user_id = $2 AND id = $3 AND completed AND NOT claimed`,
		at, userID, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim challenge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func listChallenges(ctx context.Context, q querier, userID, day string) ([]domain.Challenge, error) {
	rows, err := q.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges
		 WHERE user_id = $1 AND day = $2 ORDER BY type ASC`,
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

func scanChallenge(row pgx.Row) (*domain.Challenge, error) {
	var c domain.Challenge
	var typ string
	err := row.Scan(&c.ID, &c.UserID, &c.Day, &typ, &c.Description, &c.Target,
		&c.Progress, &c.RewardXP, &c.Completed, &c.Claimed, &c.ClaimedAt)
	if err != nil {
		return nil, err
	}
	if c.Type, err = domain.ParseChallengeType(typ); err != nil {
		return nil, fmt.Errorf("challenge %s: %w", c.ID, err)
	}
	return &c, nil
}

// ─── Achievements ───────────────────────────────────────────────────────────

func (t *tx) UnlockAchievement(ctx context.Context, userID, code string, at time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`INSERT INTO achievements (user_id, code, unlocked_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, code) DO NOTHING`,
		userID, code, at,
	)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *tx) UnlockedAchievementCodes(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := t.q.Query(ctx, `SELECT code FROM achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	codes := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes[code] = true
	}
	return codes, rows.Err()
}

func (s *Store) ListUnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT code, unlocked_at FROM achievements
		 WHERE user_id = $1 ORDER BY unlocked_at DESC, code ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []domain.UnlockedAchievement
	for rows.Next() {
		var a domain.UnlockedAchievement
		if err := rows.Scan(&a.Code, &a.UnlockedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
