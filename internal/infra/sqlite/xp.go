package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// ─── XP Ledger ──────────────────────────────────────────────────────────────

// AppendXPGrant inserts one immutable grant row.
func (t *tx) AppendXPGrant(ctx context.Context, g domain.XPGrant) error {
	if !g.Source.Valid() {
		return fmt.Errorf("append xp grant: %w", domain.ErrInvalidInput)
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO xp_grants (id, user_id, amount, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Amount, string(g.Source), millis(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append xp grant: %w", err)
	}
	return nil
}

// XPGrants returns grants in [from, to), oldest first.
func (d *DB) XPGrants(ctx context.Context, userID string, from, to time.Time) ([]domain.XPGrant, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, amount, source, created_at FROM xp_grants
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		userID, millis(from), millis(to),
	)
	if err != nil {
		return nil, fmt.Errorf("query xp grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.XPGrant
	for rows.Next() {
		var g domain.XPGrant
		var source string
		var createdAt int64
		if err := rows.Scan(&g.ID, &g.UserID, &g.Amount, &source, &createdAt); err != nil {
			return nil, err
		}
		if g.Source, err = domain.ParseXPSource(source); err != nil {
			return nil, fmt.Errorf("xp grant %s: %w", g.ID, err)
		}
		g.CreatedAt = fromMillis(createdAt)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// Leaderboard sums grants in [from, to) per learner. Ties break on user ID
// so the order is stable. Ranks are assigned by the caller.
func (d *DB) Leaderboard(ctx context.Context, from, to time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT u.id, u.display_name, SUM(g.amount) AS xp
		 FROM xp_grants g JOIN users u ON u.id = g.user_id
		 WHERE g.created_at >= ? AND g.created_at < ?
		 GROUP BY u.id, u.display_name
		 ORDER BY xp DESC, u.id ASC
		 LIMIT ?`,
		millis(from), millis(to), limit,
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
