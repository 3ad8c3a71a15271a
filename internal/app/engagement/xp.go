package engagement

import (
	"fmt"

	"github.com/volo-kola/kola/internal/domain"
)

// Base XP awards.
const (
	ExerciseXP         int64 = 10
	LessonBaseXP       int64 = 10
	LessonPerCorrectXP int64 = 2
	PerfectLessonBonus int64 = 10
)

// LessonXP computes the base award for a finished lesson, before the streak
// bonus. A perfect lesson earns PerfectLessonBonus on top.
func LessonXP(correct, total int) (int64, bool, error) {
	if err := ValidateLessonScore(correct, total); err != nil {
		return 0, false, err
	}
	perfect := correct == total
	xp := LessonBaseXP + LessonPerCorrectXP*int64(correct)
	if perfect {
		xp += PerfectLessonBonus
	}
	return xp, perfect, nil
}

// ValidateLessonScore rejects impossible lesson scores.
func ValidateLessonScore(correct, total int) error {
	switch {
	case total <= 0:
		return fmt.Errorf("%w: totalQuestions must be positive, got %d", domain.ErrInvalidInput, total)
	case correct < 0:
		return fmt.Errorf("%w: correctAnswers must not be negative, got %d", domain.ErrInvalidInput, correct)
	case correct > total:
		return fmt.Errorf("%w: correctAnswers %d exceeds totalQuestions %d", domain.ErrInvalidInput, correct, total)
	}
	return nil
}

// ValidateGrant rejects grants that would break the ledger invariants.
func ValidateGrant(g domain.XPGrant) error {
	if g.UserID == "" {
		return fmt.Errorf("%w: grant without user", domain.ErrInvalidInput)
	}
	if g.Amount <= 0 {
		return fmt.Errorf("%w: grant amount must be positive, got %d", domain.ErrInvalidInput, g.Amount)
	}
	if !g.Source.Valid() {
		return fmt.Errorf("%w: unknown xp source %q", domain.ErrInvalidInput, g.Source)
	}
	if g.CreatedAt.IsZero() {
		return fmt.Errorf("%w: grant without timestamp", domain.ErrInvalidInput)
	}
	return nil
}
