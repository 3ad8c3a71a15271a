// Package engagement implements the Kola accounting rules.
// Hearts, streaks, XP windows, challenge progress and achievements are pure
// functions of stored snapshots and an injected "now"; nothing here reads the
// clock or touches storage.
package engagement

import (
	"time"

	"github.com/volo-kola/kola/internal/domain"
)

// Heart defaults. Both are overridable through the [hearts] config section.
const (
	DefaultMaxHearts     = 5
	DefaultRegenInterval = 4 * time.Hour
)

// ComputeHearts derives the hearts available at now from a stored snapshot.
// One heart comes back per full interval elapsed since lastUpdate, up to max.
// NextRegenerationAt is nil once the learner is at max.
func ComputeHearts(current, max int, lastUpdate, now time.Time, interval time.Duration) domain.HeartState {
	if current < 0 {
		current = 0
	}
	if current >= max {
		return domain.HeartState{Available: current, Max: max}
	}
	if interval <= 0 {
		return domain.HeartState{Available: current, Max: max}
	}

	elapsed := now.Sub(lastUpdate)
	if elapsed < 0 {
		elapsed = 0 // clock skew: treat as no time passed
	}
	toAdd := int(elapsed / interval)

	available := current + toAdd
	if available > max || available < current {
		available = max
	}

	state := domain.HeartState{Available: available, Max: max}
	if available < max {
		next := lastUpdate.Add(interval * time.Duration(toAdd+1))
		state.NextRegenerationAt = &next
	}
	return state
}

// HeartsAt is ComputeHearts over a persisted snapshot.
func HeartsAt(s domain.HeartSnapshot, max int, now time.Time, interval time.Duration) domain.HeartState {
	return ComputeHearts(s.Hearts, max, s.UpdatedAt, now, interval)
}

// LoseHeart charges one heart at now. Regeneration earned so far is folded
// into the snapshot first, then the single countdown restarts from now.
// The count never drops below zero.
func LoseHeart(s domain.HeartSnapshot, max int, now time.Time, interval time.Duration) domain.HeartSnapshot {
	state := HeartsAt(s, max, now, interval)
	hearts := state.Available - 1
	if hearts < 0 {
		hearts = 0
	}
	return domain.HeartSnapshot{Hearts: hearts, UpdatedAt: now}
}
