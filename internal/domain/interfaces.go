package domain

import (
	"context"
	"time"
)

// ─── Persistence Interfaces ─────────────────────────────────────────────────
// Infrastructure implements these; the application layer depends on them.

// Store is the learner accounting store. Reads outside InTx see committed
// state only; every mutation goes through a transaction.
type Store interface {
	// CreateUser inserts a new learner. Returns ErrUserExists on duplicates.
	CreateUser(ctx context.Context, u User) error

	// GetUser returns ErrUserNotFound when the learner does not exist.
	GetUser(ctx context.Context, id string) (*User, error)

	// XPGrants returns the learner's grants with from <= created_at < to,
	// oldest first.
	XPGrants(ctx context.Context, userID string, from, to time.Time) ([]XPGrant, error)

	// Leaderboard sums grants in [from, to) per learner, highest first.
	Leaderboard(ctx context.Context, from, to time.Time, limit int) ([]LeaderboardEntry, error)

	// ListUnlockedAchievements returns unlocks, most recent first.
	ListUnlockedAchievements(ctx context.Context, userID string) ([]UnlockedAchievement, error)

	// InTx runs fn in a single transaction. fn's error rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the read-modify-write surface available inside Store.InTx.
type Tx interface {
	// GetUser reads the learner row, locking it where the backend supports it.
	GetUser(ctx context.Context, id string) (*User, error)

	// UpdateUser writes u if the stored version still equals u.Version and
	// bumps the version. A stale version yields ErrConcurrentUpdate.
	UpdateUser(ctx context.Context, u User) error

	// AppendXPGrant appends one grant. Grants are immutable.
	AppendXPGrant(ctx context.Context, g XPGrant) error

	// InsertChallenge inserts c unless a challenge of the same type already
	// exists for (user, day). Returns true when a row was inserted.
	InsertChallenge(ctx context.Context, c Challenge) (bool, error)

	// ListChallenges returns the learner's challenges for one calendar day.
	ListChallenges(ctx context.Context, userID, day string) ([]Challenge, error)

	// GetChallenge returns ErrChallengeNotFound when (userID, id) is unknown.
	GetChallenge(ctx context.Context, userID, id string) (*Challenge, error)

	// UpdateChallengeProgress stores progress and completion for an
	// unclaimed challenge.
	UpdateChallengeProgress(ctx context.Context, c Challenge) error

	// MarkChallengeClaimed flips the claim flag only if the challenge is
	// completed and not yet claimed. Returns false when nothing changed.
	MarkChallengeClaimed(ctx context.Context, userID, id string, at time.Time) (bool, error)

	// UnlockedAchievementCodes returns the set of codes already unlocked.
	UnlockedAchievementCodes(ctx context.Context, userID string) (map[string]bool, error)

	// UnlockAchievement records an unlock. Returns false if it already existed.
	UnlockAchievement(ctx context.Context, userID, code string, at time.Time) (bool, error)
}
