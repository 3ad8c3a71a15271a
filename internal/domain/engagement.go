// Package domain holds the learner accounting types shared by every layer.
// Hearts, streaks, XP grants, daily challenges and achievements live here;
// the rules that move them live in internal/app/engagement.
package domain

import (
	"fmt"
	"time"
)

// ─── Learner ────────────────────────────────────────────────────────────────

// User is the mutable snapshot of a learner's counters.
// Hearts is only meaningful together with HeartsUpdatedAt: the current heart
// count is always re-derived from that pair on read.
type User struct {
	ID                 string     `json:"id"`
	DisplayName        string     `json:"displayName"`
	Hearts             int        `json:"hearts"`
	HeartsUpdatedAt    time.Time  `json:"heartsUpdatedAt"`
	TotalXP            int64      `json:"totalXP"`
	CurrentStreak      int        `json:"currentStreak"`
	LongestStreak      int        `json:"longestStreak"`
	LastActivityDate   *time.Time `json:"lastActivityDate,omitempty"`
	LessonsCompleted   int        `json:"lessonsCompleted"`
	ExercisesCompleted int        `json:"exercisesCompleted"`
	PerfectLessons     int        `json:"perfectLessons"`
	ChallengesClaimed  int        `json:"challengesClaimed"`
	Version            int64      `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// HeartSnapshot is the persisted pair the heart calculator works from.
func (u User) HeartSnapshot() HeartSnapshot {
	return HeartSnapshot{Hearts: u.Hearts, UpdatedAt: u.HeartsUpdatedAt}
}

// StreakState is the persisted streak triple.
func (u User) StreakState() StreakState {
	return StreakState{
		Current:      u.CurrentStreak,
		Longest:      u.LongestStreak,
		LastActivity: u.LastActivityDate,
	}
}

// ─── Hearts ─────────────────────────────────────────────────────────────────

// HeartSnapshot is a stored heart count plus the epoch it was written at.
type HeartSnapshot struct {
	Hearts    int       `json:"hearts"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HeartState is derived, never persisted.
type HeartState struct {
	Available          int        `json:"hearts"`
	Max                int        `json:"maxHearts"`
	NextRegenerationAt *time.Time `json:"nextHeartRegeneration"`
}

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakState tracks consecutive calendar days with an XP-granting event.
type StreakState struct {
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

// StreakStatus is the read-side view of a streak relative to today.
// DaysSinceLastActivity is nil for a learner who has never been active.
type StreakStatus struct {
	DaysSinceLastActivity *int `json:"daysSinceLastActivity"`
	NeedsUpdate           bool `json:"needsUpdate"`
}

// ─── XP ─────────────────────────────────────────────────────────────────────

// XPSource categorizes how XP was earned.
type XPSource string

const (
	XPLesson      XPSource = "lesson"
	XPExercise    XPSource = "exercise"
	XPChallenge   XPSource = "challenge"
	XPAchievement XPSource = "achievement"
	XPStreak      XPSource = "streak"
)

// XPSources lists every valid source.
var XPSources = []XPSource{XPLesson, XPExercise, XPChallenge, XPAchievement, XPStreak}

// ParseXPSource rejects anything outside the closed set.
func ParseXPSource(s string) (XPSource, error) {
	for _, src := range XPSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: unknown xp source %q", ErrInvalidInput, s)
}

// Valid reports whether s is one of XPSources.
func (s XPSource) Valid() bool {
	_, err := ParseXPSource(string(s))
	return err == nil
}

// XPGrant is one append-only XP award. Grants are never updated or deleted;
// daily and weekly totals are always derived from them.
type XPGrant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Source    XPSource  `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// DayBucket is one entry of a trailing daily XP chart.
type DayBucket struct {
	Date string `json:"date"` // YYYY-MM-DD in the learner calendar
	XP   int64  `json:"xp"`
}

// LeaderboardPeriod selects the window a leaderboard is ranked over.
type LeaderboardPeriod string

const (
	PeriodDay  LeaderboardPeriod = "day"
	PeriodWeek LeaderboardPeriod = "week"
	PeriodAll  LeaderboardPeriod = "all"
)

// ParseLeaderboardPeriod defaults an empty value to the weekly board.
func ParseLeaderboardPeriod(s string) (LeaderboardPeriod, error) {
	switch LeaderboardPeriod(s) {
	case "":
		return PeriodWeek, nil
	case PeriodDay, PeriodWeek, PeriodAll:
		return LeaderboardPeriod(s), nil
	}
	return "", fmt.Errorf("%w: unknown leaderboard period %q", ErrInvalidInput, s)
}

// LeaderboardEntry is one ranked learner.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	XP          int64  `json:"xp"`
}

// ─── Challenges ─────────────────────────────────────────────────────────────

// ChallengeType is the metric a daily challenge counts.
type ChallengeType string

const (
	ChallengeXP       ChallengeType = "xp"
	ChallengeLessons  ChallengeType = "lessons"
	ChallengePractice ChallengeType = "practice"
)

// ChallengeTypes lists every valid challenge type.
var ChallengeTypes = []ChallengeType{ChallengeXP, ChallengeLessons, ChallengePractice}

// ParseChallengeType rejects anything outside the closed set.
func ParseChallengeType(s string) (ChallengeType, error) {
	for _, t := range ChallengeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown challenge type %q", ErrInvalidInput, s)
}

// Challenge is a learner's progress on one daily challenge.
// Invariants: Completed == (Progress >= Target); Claimed implies Completed.
type Challenge struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Day         string        `json:"day"`
	Type        ChallengeType `json:"type"`
	Description string        `json:"description"`
	Target      int           `json:"target"`
	Progress    int           `json:"progress"`
	RewardXP    int64         `json:"rewardXP"`
	Completed   bool          `json:"isCompleted"`
	Claimed     bool          `json:"rewardClaimed"`
	ClaimedAt   *time.Time    `json:"claimedAt,omitempty"`
}

// ProgressPct returns completion percentage (0-100).
func (c Challenge) ProgressPct() float64 {
	if c.Target <= 0 {
		return 100.0
	}
	pct := float64(c.Progress) / float64(c.Target) * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	return pct
}

// ChallengeTemplate defines the pool daily challenges are drawn from.
type ChallengeTemplate struct {
	Type        ChallengeType `json:"type"`
	Target      int           `json:"target"`
	Description string        `json:"description"`
	RewardXP    int64         `json:"rewardXP"`
}

// ─── Achievements ───────────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatFirstSteps AchievementCategory = "first_steps"
	CatStreaks    AchievementCategory = "streaks"
	CatXP         AchievementCategory = "xp"
	CatMastery    AchievementCategory = "mastery"
	CatChallenges AchievementCategory = "challenges"
)

// AchievementDef defines a one-time milestone.
type AchievementDef struct {
	Code      string                  `json:"code"`
	Name      string                  `json:"name"`
	Category  AchievementCategory     `json:"category"`
	Icon      string                  `json:"icon"`
	RewardXP  int64                   `json:"rewardXP"`
	Predicate func(LearnerStats) bool `json:"-"`
}

// UnlockedAchievement records when a learner earned an achievement.
type UnlockedAchievement struct {
	Code       string    `json:"code"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

// LearnerStats is the snapshot achievement predicates are evaluated against.
type LearnerStats struct {
	TotalXP            int64 `json:"totalXP"`
	Level              int   `json:"level"`
	CurrentStreak      int   `json:"currentStreak"`
	LongestStreak      int   `json:"longestStreak"`
	LessonsCompleted   int   `json:"lessonsCompleted"`
	ExercisesCompleted int   `json:"exercisesCompleted"`
	PerfectLessons     int   `json:"perfectLessons"`
	ChallengesClaimed  int   `json:"challengesClaimed"`
}
