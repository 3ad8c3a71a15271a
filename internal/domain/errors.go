package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Boundary validation
	ErrInvalidInput = errors.New("invalid input")

	// Lookups
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already exists")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrAchievementNotFound = errors.New("achievement not found")

	// Reward claim preconditions
	ErrAlreadyClaimed = errors.New("reward already claimed")
	ErrNotCompleted   = errors.New("challenge not completed")
	ErrExpired        = errors.New("challenge expired")

	// Persistence: the row changed between read and write. Callers retry
	// the whole operation against fresh state.
	ErrConcurrentUpdate = errors.New("concurrent update conflict")
)
