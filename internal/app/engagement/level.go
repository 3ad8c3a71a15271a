package engagement

import "math"

// MaxLevel caps the level curve.
const MaxLevel = 100

// XPForLevel returns the cumulative XP required to reach a given level.
// Uses an exponential curve: 100 * 1.2^(level-1) for level >= 2.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(100 * math.Pow(1.2, float64(level-1)))
}

// LevelForXP returns the level for a given XP amount.
func LevelForXP(xp int64) int {
	level := 1
	for level < MaxLevel {
		if xp < XPForLevel(level+1) {
			return level
		}
		level++
	}
	return MaxLevel
}

// XPToNextLevel returns XP remaining until the next level (0 at the cap).
func XPToNextLevel(xp int64) int64 {
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 0
	}
	remaining := XPForLevel(level+1) - xp
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// LevelProgressPct returns progress toward the next level (0.0–100.0).
func LevelProgressPct(xp int64) float64 {
	level := LevelForXP(xp)
	if level >= MaxLevel {
		return 100.0
	}
	thisLevel := XPForLevel(level)
	span := XPForLevel(level+1) - thisLevel
	if span <= 0 {
		return 100.0
	}
	progress := float64(xp-thisLevel) / float64(span) * 100.0
	return math.Max(0, math.Min(100, progress))
}
