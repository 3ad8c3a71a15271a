package progress

import (
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// AchievementUnlock is an achievement earned by the current operation.
type AchievementUnlock struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	RewardXP int64  `json:"rewardXP"`
}

// ExerciseResult is the outcome of one answered exercise. OutOfHearts is a
// normal result, not an error: nothing was recorded.
type ExerciseResult struct {
	XPEarned              int64               `json:"xpEarned"`
	StreakBonusXP         int64               `json:"streakBonusXP"`
	HeartsLost            int                 `json:"heartsLost"`
	HeartsRemaining       int                 `json:"heartsRemaining"`
	NextHeartRegeneration *time.Time          `json:"nextHeartRegeneration"`
	OutOfHearts           bool                `json:"outOfHearts"`
	CurrentStreak         int                 `json:"currentStreak"`
	Achievements          []AchievementUnlock `json:"achievements"`
	CompletedChallenges   []domain.Challenge  `json:"completedChallenges"`
}

// LessonResult is the outcome of a finished lesson.
type LessonResult struct {
	XPEarned            int64               `json:"xpEarned"`
	StreakBonusXP       int64               `json:"streakBonusXP"`
	Perfect             bool                `json:"perfect"`
	CurrentStreak       int                 `json:"currentStreak"`
	Achievements        []AchievementUnlock `json:"achievements"`
	CompletedChallenges []domain.Challenge  `json:"completedChallenges"`
}

// ClaimResult is a granted challenge reward.
type ClaimResult struct {
	ChallengeID  string              `json:"challengeId"`
	RewardXP     int64               `json:"rewardXP"`
	TotalXP      int64               `json:"totalXP"`
	Achievements []AchievementUnlock `json:"achievements"`
}

// LearnerState is the read-side view behind GET /user/me.
type LearnerState struct {
	UserID                string              `json:"userId"`
	DisplayName           string              `json:"displayName"`
	Hearts                int                 `json:"hearts"`
	MaxHearts             int                 `json:"maxHearts"`
	NextHeartRegeneration *time.Time          `json:"nextHeartRegeneration"`
	TotalXP               int64               `json:"totalXP"`
	Level                 int                 `json:"level"`
	XPToNextLevel         int64               `json:"xpToNextLevel"`
	LevelProgressPct      float64             `json:"levelProgressPct"`
	CurrentStreak         int                 `json:"currentStreak"`
	LongestStreak         int                 `json:"longestStreak"`
	Streak                domain.StreakStatus `json:"streak"`
	StreakBonusPercent    int                 `json:"streakBonusPercent"`
	TodayXP               int64               `json:"todayXP"`
	WeeklyXP              int64               `json:"weeklyXP"`
	LessonsCompleted      int                 `json:"lessonsCompleted"`
	ExercisesCompleted    int                 `json:"exercisesCompleted"`
	AsOf                  time.Time           `json:"asOf"`
}

// AchievementView is one catalog entry with the learner's unlock state.
type AchievementView struct {
	Code       string                     `json:"code"`
	Name       string                     `json:"name"`
	Category   domain.AchievementCategory `json:"category"`
	Icon       string                     `json:"icon"`
	RewardXP   int64                      `json:"rewardXP"`
	Unlocked   bool                       `json:"unlocked"`
	UnlockedAt *time.Time                 `json:"unlockedAt,omitempty"`
}
