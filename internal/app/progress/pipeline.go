package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/volo-kola/kola/internal/app/engagement"
	"github.com/volo-kola/kola/internal/domain"
)

// activity is one learning event to account for.
type activity struct {
	source    domain.XPSource
	baseXP    int64
	lessons   int
	exercises int
}

type activityOutcome struct {
	xp        int64
	bonusXP   int64
	streak    int
	completed []domain.Challenge
}

// applyActivity grants XP with the streak bonus, advances the streak and
// pushes challenge progress. The caller owns UpdateUser.
func (s *Service) applyActivity(ctx context.Context, tx domain.Tx, u *domain.User, act activity, now time.Time, eff *effects) (activityOutcome, error) {
	var out activityOutcome

	if act.baseXP > 0 {
		// Lazy streak reset: a missed day is only applied here.
		streak := engagement.AdvanceStreak(u.StreakState(), now)
		u.CurrentStreak = streak.Current
		u.LongestStreak = streak.Longest
		u.LastActivityDate = streak.LastActivity

		out.bonusXP = engagement.StreakBonusXP(act.baseXP, streak.Current)
		if err := s.grant(ctx, tx, u, act.baseXP, act.source, now, eff); err != nil {
			return out, err
		}
		if err := s.grant(ctx, tx, u, out.bonusXP, domain.XPStreak, now, eff); err != nil {
			return out, err
		}
		out.xp = act.baseXP + out.bonusXP
	}
	out.streak = engagement.EffectiveStreak(u.StreakState(), now)

	deltas := engagement.ProgressDeltas(out.xp, act.lessons, act.exercises)
	completed, err := s.advanceChallenges(ctx, tx, u.ID, deltas, now)
	if err != nil {
		return out, err
	}
	out.completed = completed
	return out, nil
}

// ─── Challenges ─────────────────────────────────────────────────────────────

// ensureChallenges creates today's set on first touch. Inserts ignore rows
// that already exist, so racing requests settle on one set.
func (s *Service) ensureChallenges(ctx context.Context, tx domain.Tx, userID string, now time.Time) ([]domain.Challenge, error) {
	day := engagement.DayKey(now)
	existing, err := tx.ListChallenges(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if len(existing) >= len(domain.ChallengeTypes) {
		return existing, nil
	}

	for _, c := range engagement.DailyChallenges(userID, now) {
		if _, err := tx.InsertChallenge(ctx, c); err != nil {
			return nil, fmt.Errorf("create daily challenges: %w", err)
		}
	}
	return tx.ListChallenges(ctx, userID, day)
}

// advanceChallenges applies per-type deltas to today's challenges and returns
// the ones that became complete.
func (s *Service) advanceChallenges(ctx context.Context, tx domain.Tx, userID string, deltas map[domain.ChallengeType]int, now time.Time) ([]domain.Challenge, error) {
	challenges, err := s.ensureChallenges(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	completed := []domain.Challenge{}
	for _, c := range challenges {
		delta := deltas[c.Type]
		if delta <= 0 || c.Completed || c.Claimed {
			continue
		}
		next, err := engagement.ApplyProgress(c, delta)
		if err != nil {
			return nil, err
		}
		if err := tx.UpdateChallengeProgress(ctx, next); err != nil {
			return nil, err
		}
		if next.Completed {
			completed = append(completed, next)
		}
	}
	return completed, nil
}

// ─── Achievements ───────────────────────────────────────────────────────────

// unlockAchievements evaluates the catalog until nothing new unlocks.
// Achievement rewards can cross XP milestones, hence the loop; it ends
// because every pass unlocks at least one of a finite catalog.
func (s *Service) unlockAchievements(ctx context.Context, tx domain.Tx, u *domain.User, now time.Time, eff *effects) ([]AchievementUnlock, error) {
	unlocked, err := tx.UnlockedAchievementCodes(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	out := []AchievementUnlock{}
	for {
		pending := engagement.PendingAchievements(engagement.StatsFor(*u), unlocked)
		if len(pending) == 0 {
			return out, nil
		}
		for _, def := range pending {
			unlocked[def.Code] = true
			isNew, err := tx.UnlockAchievement(ctx, u.ID, def.Code, now)
			if err != nil {
				return nil, err
			}
			if !isNew {
				continue
			}
			if err := s.grant(ctx, tx, u, def.RewardXP, domain.XPAchievement, now, eff); err != nil {
				return nil, err
			}
			a := AchievementUnlock{Code: def.Code, Name: def.Name, Icon: def.Icon, RewardXP: def.RewardXP}
			out = append(out, a)
			eff.unlocks = append(eff.unlocks, a)
		}
	}
}
