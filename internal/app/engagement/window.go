package engagement

import (
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// SumInWindow totals grants with start <= CreatedAt < endExclusive.
// Adjacent windows never double-count a grant sitting on their boundary.
func SumInWindow(grants []domain.XPGrant, start, endExclusive time.Time) int64 {
	var total int64
	for _, g := range grants {
		if g.CreatedAt.Before(start) || !g.CreatedAt.Before(endExclusive) {
			continue
		}
		total += g.Amount
	}
	return total
}

// DailyBuckets builds a dense trailing chart of exactly days entries ending
// with today, oldest first. Days without grants are present with 0 XP.
func DailyBuckets(grants []domain.XPGrant, today time.Time, days int) []domain.DayBucket {
	if days <= 0 {
		return []domain.DayBucket{}
	}

	first := StartOfDay(today).AddDate(0, 0, -(days - 1))
	buckets := make([]domain.DayBucket, days)
	index := make(map[string]int, days)
	for i := range buckets {
		day := first.AddDate(0, 0, i)
		key := DayKey(day)
		buckets[i] = domain.DayBucket{Date: key}
		index[key] = i
	}

	loc := today.Location()
	for _, g := range grants {
		if i, ok := index[DayKey(g.CreatedAt.In(loc))]; ok {
			buckets[i].XP += g.Amount
		}
	}
	return buckets
}

// DayWindow is the half-open calendar day containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow is the half-open ISO week (Monday start) containing t.
func WeekWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	offset := (int(start.Weekday()) + 6) % 7 // days since Monday
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// TrailingWindow covers the last days calendar days, today included.
func TrailingWindow(today time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	end := StartOfDay(today).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days), end
}

// PeriodWindow maps a leaderboard period onto a window around now.
// PeriodAll spans from the zero time to the end of today.
func PeriodWindow(p domain.LeaderboardPeriod, now time.Time) (time.Time, time.Time) {
	switch p {
	case domain.PeriodDay:
		return DayWindow(now)
	case domain.PeriodAll:
		_, end := DayWindow(now)
		return time.Unix(0, 0).In(now.Location()), end
	default:
		return WeekWindow(now)
	}
}
