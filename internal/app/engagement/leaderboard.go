package engagement

import "github.com/volo-kola/kola/internal/domain"

// RankEntries assigns competition ranks (1, 2, 2, 4) to entries already
// sorted by XP descending.
func RankEntries(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	for i := range entries {
		if i > 0 && entries[i].XP == entries[i-1].XP {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
	return entries
}
