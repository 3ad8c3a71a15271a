package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/volo-kola/kola/internal/app/engagement"
	"github.com/volo-kola/kola/internal/domain"
	"github.com/volo-kola/kola/internal/infra/metrics"
)

// effects collects what a committed transaction did, so metrics and logs are
// emitted once and only after commit.
type effects struct {
	grants  []domain.XPGrant
	unlocks []AchievementUnlock
}

// grant appends one XP grant and moves the learner's running total with it.
// total_xp is always the sum of the learner's grants.
func (s *Service) grant(ctx context.Context, tx domain.Tx, u *domain.User, amount int64, source domain.XPSource, now time.Time, eff *effects) error {
	if amount == 0 {
		return nil
	}
	g := domain.XPGrant{
		ID:        s.newID(),
		UserID:    u.ID,
		Amount:    amount,
		Source:    source,
		CreatedAt: now,
	}
	if err := engagement.ValidateGrant(g); err != nil {
		return err
	}
	if err := tx.AppendXPGrant(ctx, g); err != nil {
		return fmt.Errorf("grant %s xp: %w", source, err)
	}
	u.TotalXP += amount
	eff.grants = append(eff.grants, g)
	return nil
}

// record publishes committed effects.
func (s *Service) record(eff *effects) {
	for _, g := range eff.grants {
		metrics.XPGranted.WithLabelValues(string(g.Source)).Add(float64(g.Amount))
	}
	for _, a := range eff.unlocks {
		metrics.AchievementsUnlocked.WithLabelValues(a.Code).Inc()
	}
}
