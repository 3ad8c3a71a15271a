package engagement

import "github.com/volo-kola/kola/internal/domain"

// PendingAchievements returns the defs whose predicate holds for stats and
// that are not in unlocked. Re-evaluating an unlocked achievement is a no-op.
func PendingAchievements(stats domain.LearnerStats, unlocked map[string]bool) []domain.AchievementDef {
	var pending []domain.AchievementDef
	for _, def := range AllAchievements() {
		if unlocked[def.Code] {
			continue
		}
		if def.Predicate != nil && def.Predicate(stats) {
			pending = append(pending, def)
		}
	}
	return pending
}

// StatsFor builds the predicate snapshot from a learner row.
func StatsFor(u domain.User) domain.LearnerStats {
	return domain.LearnerStats{
		TotalXP:            u.TotalXP,
		Level:              LevelForXP(u.TotalXP),
		CurrentStreak:      u.CurrentStreak,
		LongestStreak:      u.LongestStreak,
		LessonsCompleted:   u.LessonsCompleted,
		ExercisesCompleted: u.ExercisesCompleted,
		PerfectLessons:     u.PerfectLessons,
		ChallengesClaimed:  u.ChallengesClaimed,
	}
}

// AchievementByCode looks up a catalog entry.
func AchievementByCode(code string) (domain.AchievementDef, bool) {
	for _, def := range AllAchievements() {
		if def.Code == code {
			return def, true
		}
	}
	return domain.AchievementDef{}, false
}

// ─── Achievement Catalog ────────────────────────────────────────────────────

// AllAchievements returns the full achievement catalog.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		// ── First steps ────────────────────────────────────────────────
		{
			Code: "first_lesson", Name: "First Words", Category: domain.CatFirstSteps,
			Icon: "🌱", RewardXP: 10,
			Predicate: func(s domain.LearnerStats) bool { return s.LessonsCompleted >= 1 },
		},
		{
			Code: "first_exercise", Name: "Warming Up", Category: domain.CatFirstSteps,
			Icon: "✏️", RewardXP: 5,
			Predicate: func(s domain.LearnerStats) bool { return s.ExercisesCompleted >= 1 },
		},
		{
			Code: "first_perfect", Name: "Flawless", Category: domain.CatFirstSteps,
			Icon: "💯", RewardXP: 20,
			Predicate: func(s domain.LearnerStats) bool { return s.PerfectLessons >= 1 },
		},

		// ── Streaks ────────────────────────────────────────────────────
		{
			Code: "streak_3", Name: "On a Roll", Category: domain.CatStreaks,
			Icon: "🔥", RewardXP: 15,
			Predicate: func(s domain.LearnerStats) bool { return s.CurrentStreak >= 3 },
		},
		{
			Code: "streak_7", Name: "Week Warrior", Category: domain.CatStreaks,
			Icon: "📅", RewardXP: 50,
			Predicate: func(s domain.LearnerStats) bool { return s.CurrentStreak >= 7 },
		},
		{
			Code: "streak_30", Name: "Monthly Devotion", Category: domain.CatStreaks,
			Icon: "🏅", RewardXP: 200,
			Predicate: func(s domain.LearnerStats) bool { return s.LongestStreak >= 30 },
		},

		// ── XP ─────────────────────────────────────────────────────────
		{
			Code: "xp_100", Name: "Centurion", Category: domain.CatXP,
			Icon: "⭐", RewardXP: 10,
			Predicate: func(s domain.LearnerStats) bool { return s.TotalXP >= 100 },
		},
		{
			Code: "xp_1000", Name: "Word Hoarder", Category: domain.CatXP,
			Icon: "🌟", RewardXP: 50,
			Predicate: func(s domain.LearnerStats) bool { return s.TotalXP >= 1000 },
		},
		{
			Code: "level_10", Name: "Rising Voice", Category: domain.CatXP,
			Icon: "🎖️", RewardXP: 100,
			Predicate: func(s domain.LearnerStats) bool { return s.Level >= 10 },
		},

		// ── Mastery ────────────────────────────────────────────────────
		{
			Code: "lessons_10", Name: "Steady Learner", Category: domain.CatMastery,
			Icon: "📚", RewardXP: 30,
			Predicate: func(s domain.LearnerStats) bool { return s.LessonsCompleted >= 10 },
		},
		{
			Code: "exercises_100", Name: "Practice Makes Perfect", Category: domain.CatMastery,
			Icon: "🎯", RewardXP: 50,
			Predicate: func(s domain.LearnerStats) bool { return s.ExercisesCompleted >= 100 },
		},
		{
			Code: "perfect_5", Name: "Sharp Ear", Category: domain.CatMastery,
			Icon: "👂", RewardXP: 40,
			Predicate: func(s domain.LearnerStats) bool { return s.PerfectLessons >= 5 },
		},

		// ── Challenges ─────────────────────────────────────────────────
		{
			Code: "challenge_1", Name: "Challenger", Category: domain.CatChallenges,
			Icon: "🏆", RewardXP: 10,
			Predicate: func(s domain.LearnerStats) bool { return s.ChallengesClaimed >= 1 },
		},
		{
			Code: "challenge_25", Name: "Daily Champion", Category: domain.CatChallenges,
			Icon: "👑", RewardXP: 100,
			Predicate: func(s domain.LearnerStats) bool { return s.ChallengesClaimed >= 25 },
		},
	}
}
