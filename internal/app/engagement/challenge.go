package engagement

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/volo-kola/kola/internal/domain"
)

// challengePool is the set of possible daily challenge templates.
var challengePool = []domain.ChallengeTemplate{
	{Type: domain.ChallengeXP, Target: 30, Description: "Earn 30 XP", RewardXP: 10},
	{Type: domain.ChallengeXP, Target: 50, Description: "Earn 50 XP", RewardXP: 15},
	{Type: domain.ChallengeXP, Target: 100, Description: "Earn 100 XP", RewardXP: 25},
	{Type: domain.ChallengeLessons, Target: 1, Description: "Finish a lesson", RewardXP: 10},
	{Type: domain.ChallengeLessons, Target: 2, Description: "Finish 2 lessons", RewardXP: 20},
	{Type: domain.ChallengeLessons, Target: 3, Description: "Finish 3 lessons", RewardXP: 30},
	{Type: domain.ChallengePractice, Target: 5, Description: "Answer 5 exercises", RewardXP: 10},
	{Type: domain.ChallengePractice, Target: 10, Description: "Answer 10 exercises", RewardXP: 15},
	{Type: domain.ChallengePractice, Target: 20, Description: "Answer 20 exercises", RewardXP: 25},
}

// DailyChallenges returns one challenge per type for the learner's day.
// The pick is seeded by (userID, day) so rollover is deterministic: two
// requests racing to create the same day produce the same set.
func DailyChallenges(userID string, day time.Time) []domain.Challenge {
	key := DayKey(day)
	r := rand.New(rand.NewSource(seedFor(userID, key)))

	byType := make(map[domain.ChallengeType][]domain.ChallengeTemplate)
	for _, tmpl := range challengePool {
		byType[tmpl.Type] = append(byType[tmpl.Type], tmpl)
	}

	out := make([]domain.Challenge, 0, len(domain.ChallengeTypes))
	for _, t := range domain.ChallengeTypes {
		options := byType[t]
		if len(options) == 0 {
			continue
		}
		tmpl := options[r.Intn(len(options))]
		out = append(out, domain.Challenge{
			ID:          uuid.NewString(),
			UserID:      userID,
			Day:         key,
			Type:        tmpl.Type,
			Description: tmpl.Description,
			Target:      tmpl.Target,
			RewardXP:    tmpl.RewardXP,
		})
	}
	return out
}

// ApplyProgress adds delta to a challenge. Progress is clamped at Target and
// Completed follows Progress >= Target. A claimed challenge is left as is.
func ApplyProgress(c domain.Challenge, delta int) (domain.Challenge, error) {
	if delta < 0 {
		return c, fmt.Errorf("%w: negative progress delta %d", domain.ErrInvalidInput, delta)
	}
	if c.Claimed {
		return c, nil
	}

	progress := c.Progress + delta
	if progress > c.Target || progress < c.Progress {
		progress = c.Target
	}
	c.Progress = progress
	c.Completed = c.Progress >= c.Target
	return c, nil
}

// CheckClaim validates the claim preconditions.
func CheckClaim(c domain.Challenge) error {
	if c.Claimed {
		return domain.ErrAlreadyClaimed
	}
	if !c.Completed {
		return domain.ErrNotCompleted
	}
	return nil
}

// Claim marks the reward as claimed and returns the XP to grant. Storage
// must apply the flag with a conditional update so that only one of several
// concurrent claims ever grants.
func Claim(c domain.Challenge, now time.Time) (domain.Challenge, int64, error) {
	if err := CheckClaim(c); err != nil {
		return c, 0, err
	}
	c.Claimed = true
	at := now
	c.ClaimedAt = &at
	return c, c.RewardXP, nil
}

// ProgressDeltas maps one accounting event onto per-type challenge deltas.
func ProgressDeltas(xp int64, lessons, exercises int) map[domain.ChallengeType]int {
	return map[domain.ChallengeType]int{
		domain.ChallengeXP:       int(xp),
		domain.ChallengeLessons:  lessons,
		domain.ChallengePractice: exercises,
	}
}

func seedFor(userID, day string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(day))
	return int64(h.Sum64())
}
