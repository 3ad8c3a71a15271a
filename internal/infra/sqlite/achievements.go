package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// ─── Achievements ───────────────────────────────────────────────────────────

// UnlockAchievement uses INSERT OR IGNORE so a repeated unlock keeps the
// original timestamp and reports false.
func (t *tx) UnlockAchievement(ctx context.Context, userID, code string, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievements (user_id, code, unlocked_at) VALUES (?, ?, ?)`,
		userID, code, millis(at),
	)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (t *tx) UnlockedAchievementCodes(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT code FROM achievements WHERE user_id = ?`, userID)
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

// ListUnlockedAchievements returns unlocks, most recent first.
func (d *DB) ListUnlockedAchievements(ctx context.Context, userID string) ([]domain.UnlockedAchievement, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT code, unlocked_at FROM achievements
		 WHERE user_id = ? ORDER BY unlocked_at DESC, code ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer rows.Close()

	var out []domain.UnlockedAchievement
	for rows.Next() {
		var a domain.UnlockedAchievement
		var at int64
		if err := rows.Scan(&a.Code, &at); err != nil {
			return nil, err
		}
		a.UnlockedAt = fromMillis(at)
		out = append(out, a)
	}
	return out, rows.Err()
}
