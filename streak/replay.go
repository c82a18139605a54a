package streak

import (
	"time"

	"github.com/warp/prayer-ledger/generic"
)

// Replay rebuilds the aggregate from a ledger as if every check-in had
// been submitted at its own CreatedAt, oldest first. The result is what
// incremental submission would have produced; it does not apply
// rehydration, so a lapsed streak still shows its last value.
func Replay(l *generic.Ledger, loc *time.Location) generic.Stats {
	var stats generic.Stats
	for _, c := range l.Chronological() {
		at := c.CreatedAt
		advance(&stats, at, loc)
		if stats.CurrentStreak > stats.LongestStreak {
			stats.LongestStreak = stats.CurrentStreak
		}
		stats.TotalCheckIns++
		stats.LastPrayedDate = &at
	}
	stats.FavoriteMysteries = RankFavorites(l.Entries())
	return stats
}
