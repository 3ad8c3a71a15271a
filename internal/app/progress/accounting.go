package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/volo-kola/kola/internal/app/engagement"
	"github.com/volo-kola/kola/internal/domain"
	"github.com/volo-kola/kola/internal/infra/metrics"
)

// CompleteExercise accounts for one answered exercise.
//
// With no hearts available nothing is recorded and OutOfHearts is set.
// A wrong answer costs a heart and restarts the regeneration countdown.
// A correct answer earns ExerciseXP plus the streak bonus and advances the
// streak. Either answer counts toward the practice challenge.
func (s *Service) CompleteExercise(ctx context.Context, userID, exerciseID string, isCorrect bool) (*ExerciseResult, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	if err := requireID("exercise id", &exerciseID); err != nil {
		return nil, err
	}

	var res *ExerciseResult
	var eff *effects
	err := s.withRetry(ctx, "complete_exercise", func(tx domain.Tx, now time.Time) error {
		res, eff = &ExerciseResult{}, &effects{}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}

		hearts := engagement.HeartsAt(u.HeartSnapshot(), s.rules.MaxHearts, now, s.rules.RegenInterval)
		if hearts.Available == 0 {
			res.OutOfHearts = true
			res.NextHeartRegeneration = hearts.NextRegenerationAt
			res.CurrentStreak = engagement.EffectiveStreak(u.StreakState(), now)
			return nil
		}

		act := activity{source: domain.XPExercise, exercises: 1}
		if isCorrect {
			act.baseXP = engagement.ExerciseXP
		} else {
			snap := engagement.LoseHeart(u.HeartSnapshot(), s.rules.MaxHearts, now, s.rules.RegenInterval)
			u.Hearts, u.HeartsUpdatedAt = snap.Hearts, snap.UpdatedAt
			res.HeartsLost = 1
		}
		u.ExercisesCompleted++

		out, err := s.applyActivity(ctx, tx, u, act, now, eff)
		if err != nil {
			return err
		}
		unlocks, err := s.unlockAchievements(ctx, tx, u, now, eff)
		if err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, *u); err != nil {
			return err
		}

		after := engagement.HeartsAt(u.HeartSnapshot(), s.rules.MaxHearts, now, s.rules.RegenInterval)
		res.XPEarned = out.xp
		res.StreakBonusXP = out.bonusXP
		res.CurrentStreak = out.streak
		res.HeartsRemaining = after.Available
		res.NextHeartRegeneration = after.NextRegenerationAt
		res.Achievements = unlocks
		res.CompletedChallenges = out.completed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.OutOfHearts {
		metrics.OutOfHearts.Inc()
		s.log.Info("exercise rejected: out of hearts",
			zap.String("user_id", userID), zap.String("exercise_id", exerciseID))
		return res, nil
	}
	s.record(eff)
	metrics.ExercisesAnswered.WithLabelValues(strconv.FormatBool(isCorrect)).Inc()
	if res.HeartsLost > 0 {
		metrics.HeartsLost.Add(float64(res.HeartsLost))
	}
	s.log.Debug("exercise completed",
		zap.String("user_id", userID),
		zap.String("exercise_id", exerciseID),
		zap.Bool("correct", isCorrect),
		zap.Int64("xp", res.XPEarned),
		zap.Int("hearts", res.HeartsRemaining))
	s.logUnlocks(userID, res.Achievements)
	return res, nil
}

// CompleteLesson accounts for a finished lesson.
func (s *Service) CompleteLesson(ctx context.Context, userID, lessonID string, correct, total int) (*LessonResult, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	if err := requireID("lesson id", &lessonID); err != nil {
		return nil, err
	}
	baseXP, perfect, err := engagement.LessonXP(correct, total)
	if err != nil {
		return nil, err
	}

	var res *LessonResult
	var eff *effects
	err = s.withRetry(ctx, "complete_lesson", func(tx domain.Tx, now time.Time) error {
		res, eff = &LessonResult{Perfect: perfect}, &effects{}

		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u.LessonsCompleted++
		if perfect {
			u.PerfectLessons++
		}

		out, err := s.applyActivity(ctx, tx, u, activity{source: domain.XPLesson, baseXP: baseXP, lessons: 1}, now, eff)
		if err != nil {
			return err
		}
		unlocks, err := s.unlockAchievements(ctx, tx, u, now, eff)
		if err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, *u); err != nil {
			return err
		}

		res.XPEarned = out.xp
		res.StreakBonusXP = out.bonusXP
		res.CurrentStreak = out.streak
		res.Achievements = unlocks
		res.CompletedChallenges = out.completed
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(eff)
	metrics.LessonsCompleted.WithLabelValues(strconv.FormatBool(perfect)).Inc()
	s.log.Info("lesson completed",
		zap.String("user_id", userID),
		zap.String("lesson_id", lessonID),
		zap.Int("correct", correct),
		zap.Int("total", total),
		zap.Int64("xp", res.XPEarned))
	s.logUnlocks(userID, res.Achievements)
	return res, nil
}

// ClaimChallenge grants a completed challenge's reward exactly once.
// Only today's challenges can be claimed; an unclaimed reward lapses at the
// end of its day.
// The conditional claim flag decides between concurrent claimers: the loser
// sees ErrAlreadyClaimed and nothing is granted twice.
func (s *Service) ClaimChallenge(ctx context.Context, userID, challengeID string) (*ClaimResult, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	if err := requireID("challenge id", &challengeID); err != nil {
		return nil, err
	}

	var res *ClaimResult
	var eff *effects
	err := s.withRetry(ctx, "claim_challenge", func(tx domain.Tx, now time.Time) error {
		res, eff = &ClaimResult{ChallengeID: challengeID}, &effects{}

		// Lock the learner first so claim and completion paths take locks
		// in the same order.
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		c, err := tx.GetChallenge(ctx, userID, challengeID)
		if err != nil {
			return err
		}
		_, reward, err := engagement.Claim(*c, now)
		if err != nil {
			return err
		}
		if c.Day != engagement.DayKey(now) {
			return fmt.Errorf("%w: %s belongs to %s", domain.ErrExpired, challengeID, c.Day)
		}
		ok, err := tx.MarkChallengeClaimed(ctx, userID, challengeID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyClaimed
		}

		if err := s.grant(ctx, tx, u, reward, domain.XPChallenge, now, eff); err != nil {
			return err
		}
		u.ChallengesClaimed++
		unlocks, err := s.unlockAchievements(ctx, tx, u, now, eff)
		if err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, *u); err != nil {
			return err
		}

		res.RewardXP = reward
		res.TotalXP = u.TotalXP
		res.Achievements = unlocks
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyClaimed):
			metrics.ChallengeClaims.WithLabelValues("already_claimed").Inc()
		case errors.Is(err, domain.ErrNotCompleted):
			metrics.ChallengeClaims.WithLabelValues("not_completed").Inc()
		case errors.Is(err, domain.ErrExpired):
			metrics.ChallengeClaims.WithLabelValues("expired").Inc()
		}
		return nil, err
	}

	s.record(eff)
	metrics.ChallengeClaims.WithLabelValues("granted").Inc()
	s.log.Info("challenge claimed",
		zap.String("user_id", userID),
		zap.String("challenge_id", challengeID),
		zap.Int64("xp", res.RewardXP))
	s.logUnlocks(userID, res.Achievements)
	return res, nil
}

func (s *Service) logUnlocks(userID string, unlocks []AchievementUnlock) {
	for _, a := range unlocks {
		s.log.Info("achievement unlocked",
			zap.String("user_id", userID),
			zap.String("code", a.Code),
			zap.Int64("xp", a.RewardXP))
	}
}
