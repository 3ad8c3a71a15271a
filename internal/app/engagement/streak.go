package engagement

import (
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// Streak bonus: +10% XP per consecutive day, capped at +50%.
const (
	StreakBonusPerDay = 10
	StreakBonusCap    = 50
)

// StreakBonusPercent returns the XP bonus percentage for a streak length.
func StreakBonusPercent(streak int) int {
	if streak <= 0 {
		return 0
	}
	if streak >= StreakBonusCap/StreakBonusPerDay {
		return StreakBonusCap
	}
	return streak * StreakBonusPerDay
}

// StreakBonusXP applies the bonus percentage to a base award, rounding down.
func StreakBonusXP(base int64, streak int) int64 {
	if base <= 0 {
		return 0
	}
	return base * int64(StreakBonusPercent(streak)) / 100
}

// EvaluateStreak compares the last activity day with today. Both are
// normalized to midnight in today's location before differencing.
// A gap of exactly one day keeps the streak alive; more than one needs a reset.
func EvaluateStreak(last *time.Time, today time.Time) domain.StreakStatus {
	if last == nil {
		return domain.StreakStatus{}
	}
	days := DaysBetween(*last, today)
	if days < 0 {
		days = 0 // activity stamped "in the future" counts as today
	}
	return domain.StreakStatus{
		DaysSinceLastActivity: &days,
		NeedsUpdate:           days > 1,
	}
}

// EffectiveStreak is the streak to display at today. A broken streak reads
// as 0 even though the stored counter is only reset on the next XP event.
func EffectiveStreak(s domain.StreakState, today time.Time) int {
	if EvaluateStreak(s.LastActivity, today).NeedsUpdate {
		return 0
	}
	return s.Current
}

// AdvanceStreak credits an XP-granting event at now. The reset for a missed
// day happens here, lazily, never on read.
func AdvanceStreak(s domain.StreakState, now time.Time) domain.StreakState {
	status := EvaluateStreak(s.LastActivity, now)
	switch {
	case status.DaysSinceLastActivity == nil:
		s.Current = 1
	case *status.DaysSinceLastActivity == 0:
		if s.Current == 0 {
			s.Current = 1
		}
	case *status.DaysSinceLastActivity == 1:
		s.Current++
	default:
		s.Current = 1
	}

	at := now
	s.LastActivity = &at
	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	return s
}

// DaysBetween counts calendar days from a to b in b's location.
func DaysBetween(a, b time.Time) int {
	loc := b.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.Date()
	// Compare as UTC dates so DST transitions cannot shave an hour off a day.
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// StartOfDay returns local midnight of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayKey formats t's calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
