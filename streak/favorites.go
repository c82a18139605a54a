package streak

import (
	"sort"

	"github.com/warp/prayer-ledger/generic"
)

// FavoriteCount is how many favorites the aggregate keeps.
const FavoriteCount = 3

// favoriteCounter counts mysteries and remembers the order each was first seen.
type favoriteCounter struct {
	order  []generic.MysteryType
	counts map[generic.MysteryType]int
}

func newFavoriteCounter() *favoriteCounter {
	return &favoriteCounter{counts: make(map[generic.MysteryType]int)}
}

func (f *favoriteCounter) add(m generic.MysteryType) {
	if _, seen := f.counts[m]; !seen {
		f.order = append(f.order, m)
	}
	f.counts[m]++
}

// top returns the n most frequent mysteries. Ties keep first-seen order.
func (f *favoriteCounter) top(n int) []generic.MysteryType {
	ranked := append([]generic.MysteryType(nil), f.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return f.counts[ranked[i]] > f.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// RankFavorites ranks mysteries by frequency across checkIns, iterated in
// the order given (ledger order is newest-first).
func RankFavorites(checkIns []generic.CheckIn) []generic.MysteryType {
	f := newFavoriteCounter()
	for _, c := range checkIns {
		f.add(c.Mystery)
	}
	return f.top(FavoriteCount)
}

func favoritesOf(l *generic.Ledger) []generic.MysteryType {
	f := newFavoriteCounter()
	l.Each(func(c generic.CheckIn) { f.add(c.Mystery) })
	return f.top(FavoriteCount)
}
