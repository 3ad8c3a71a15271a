package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/volo-kola/kola/internal/app/engagement"
	"github.com/volo-kola/kola/internal/domain"
)

// Chart and leaderboard bounds.
const (
	DefaultChartDays        = 7
	MaxChartDays            = 365
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// RegisterUser provisions a learner with full hearts. Identity itself is
// owned by the upstream auth service; this only creates the counters row.
func (s *Service) RegisterUser(ctx context.Context, id, displayName string) (*domain.User, error) {
	if err := requireID("user id", &id); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if len(displayName) > 64 {
		return nil, fmt.Errorf("%w: display name longer than 64 bytes", domain.ErrInvalidInput)
	}

	now := s.now()
	u := domain.User{
		ID:              id,
		DisplayName:     displayName,
		Hearts:          s.rules.MaxHearts,
		HeartsUpdatedAt: now,
		CreatedAt:       now,
		Version:         1,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("learner registered", zap.String("user_id", id))
	return &u, nil
}

// User returns the stored learner row.
func (s *Service) User(ctx context.Context, id string) (*domain.User, error) {
	if err := requireID("user id", &id); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, id)
}

// LearnerState derives the current hearts, streak and XP view. Nothing is
// written: regeneration and streak expiry are computed, not stored.
func (s *Service) LearnerState(ctx context.Context, userID string) (*LearnerState, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	weekStart, weekEnd := engagement.WeekWindow(now)
	dayStart, dayEnd := engagement.DayWindow(now)
	// The current week always contains today.
	grants, err := s.store.XPGrants(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	hearts := engagement.HeartsAt(u.HeartSnapshot(), s.rules.MaxHearts, now, s.rules.RegenInterval)
	status := engagement.EvaluateStreak(u.LastActivityDate, now)
	streak := engagement.EffectiveStreak(u.StreakState(), now)

	return &LearnerState{
		UserID:                u.ID,
		DisplayName:           u.DisplayName,
		Hearts:                hearts.Available,
		MaxHearts:             hearts.Max,
		NextHeartRegeneration: hearts.NextRegenerationAt,
		TotalXP:               u.TotalXP,
		Level:                 engagement.LevelForXP(u.TotalXP),
		XPToNextLevel:         engagement.XPToNextLevel(u.TotalXP),
		LevelProgressPct:      engagement.LevelProgressPct(u.TotalXP),
		CurrentStreak:         streak,
		LongestStreak:         u.LongestStreak,
		Streak:                status,
		StreakBonusPercent:    engagement.StreakBonusPercent(streak),
		TodayXP:               engagement.SumInWindow(grants, dayStart, dayEnd),
		WeeklyXP:              engagement.SumInWindow(grants, weekStart, weekEnd),
		LessonsCompleted:      u.LessonsCompleted,
		ExercisesCompleted:    u.ExercisesCompleted,
		AsOf:                  now,
	}, nil
}

// DailyChallenges returns today's challenges, creating them on the first
// read of the day.
func (s *Service) DailyChallenges(ctx context.Context, userID string) ([]domain.Challenge, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}

	var out []domain.Challenge
	err := s.withRetry(ctx, "daily_challenges", func(tx domain.Tx, now time.Time) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		list, err := s.ensureChallenges(ctx, tx, userID, now)
		out = list
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// XPChart returns a dense trailing chart of days buckets ending today.
func (s *Service) XPChart(ctx context.Context, userID string, days int) ([]domain.DayBucket, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	if days < 1 || days > MaxChartDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d, got %d", domain.ErrInvalidInput, MaxChartDays, days)
	}
	if _, err := s.User(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	from, to := engagement.TrailingWindow(now, days)
	grants, err := s.store.XPGrants(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	return engagement.DailyBuckets(grants, now, days), nil
}

// Leaderboard ranks learners by XP earned in the period.
func (s *Service) Leaderboard(ctx context.Context, period domain.LeaderboardPeriod, limit int) ([]domain.LeaderboardEntry, error) {
	if limit == 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit < 0 || limit > MaxLeaderboardLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d, got %d", domain.ErrInvalidInput, MaxLeaderboardLimit, limit)
	}
	if period == "" {
		period = domain.PeriodWeek
	}
	if _, err := domain.ParseLeaderboardPeriod(string(period)); err != nil {
		return nil, err
	}

	from, to := engagement.PeriodWindow(period, s.now())
	entries, err := s.store.Leaderboard(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return engagement.RankEntries(entries), nil
}

// Achievements lists the whole catalog with the learner's unlock times.
func (s *Service) Achievements(ctx context.Context, userID string) ([]AchievementView, error) {
	at, err := s.unlockTimes(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog := engagement.AllAchievements()
	out := make([]AchievementView, 0, len(catalog))
	for _, def := range catalog {
		out = append(out, s.achievementView(def, at))
	}
	return out, nil
}

// Achievement returns one catalog entry with the learner's unlock state.
func (s *Service) Achievement(ctx context.Context, userID, code string) (*AchievementView, error) {
	def, ok := engagement.AchievementByCode(strings.TrimSpace(code))
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAchievementNotFound, code)
	}
	at, err := s.unlockTimes(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := s.achievementView(def, at)
	return &v, nil
}

func (s *Service) unlockTimes(ctx context.Context, userID string) (map[string]time.Time, error) {
	if err := requireID("user id", &userID); err != nil {
		return nil, err
	}
	if _, err := s.User(ctx, userID); err != nil {
		return nil, err
	}
	unlocked, err := s.store.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(unlocked))
	for _, a := range unlocked {
		at[a.Code] = a.UnlockedAt
	}
	return at, nil
}

func (s *Service) achievementView(def domain.AchievementDef, at map[string]time.Time) AchievementView {
	v := AchievementView{
		Code:     def.Code,
		Name:     def.Name,
		Category: def.Category,
		Icon:     def.Icon,
		RewardXP: def.RewardXP,
	}
	if t, ok := at[def.Code]; ok {
		t := t.In(s.rules.Location)
		v.Unlocked = true
		v.UnlockedAt = &t
	}
	return v
}
