package streak

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/prayer-ledger/generic"
)

const (
	// DefaultRecentLimit is the RecentActivity size when none is given.
	DefaultRecentLimit = 5

	// WeekDays is the length of the weekly window, today included.
	WeekDays = 7
)

// StatsView is what the presentation layer shows.
type StatsView struct {
	CurrentStreak        int
	LongestStreak        int
	TotalCheckIns        int
	LastCheckIn          *generic.CheckIn
	FavoriteMysteries    []generic.MysteryType
	WeeklyProgress       int
	WeeklyCompletionRate decimal.Decimal // WeeklyProgress / 7, capped at 1
}

// =============================================================================
// QUERIES - read lock only
// =============================================================================

// HasCheckedInToday reports whether the latest check-in is on today's local date.
func (e *Engine) HasCheckedInToday() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.checkedInTodayLocked(e.clock.Now())
}

func (e *Engine) checkedInTodayLocked(now time.Time) bool {
	return e.stats.LastPrayedDate != nil &&
		generic.DayDifference(now, *e.stats.LastPrayedDate, e.loc) == 0
}

// Today returns the local date key for now and whether the user has
// checked in on it. Both come from one clock reading.
func (e *Engine) Today() (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	now := e.clock.Now()
	return generic.DayKey(now, e.loc), e.checkedInTodayLocked(now)
}

// WeeklyCheckIns returns check-ins from local midnight six days ago onward.
func (e *Engine) WeeklyCheckIns() []generic.CheckIn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weeklyLocked(e.clock.Now())
}

func (e *Engine) weeklyLocked(now time.Time) []generic.CheckIn {
	return e.ledger.Since(generic.DaysAgoMidnight(now, WeekDays-1, e.loc))
}

// WeeklyProgress counts distinct local days with a check-in this week.
func (e *Engine) WeeklyProgress() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.uniqueDays(e.weeklyLocked(e.clock.Now()))
}

func (e *Engine) uniqueDays(checkIns []generic.CheckIn) int {
	days := make(map[string]struct{}, len(checkIns))
	for _, c := range checkIns {
		days[generic.DayKey(c.CreatedAt, e.loc)] = struct{}{}
	}
	return len(days)
}

// RecentActivity returns the newest check-ins. A non-positive limit
// means DefaultRecentLimit.
func (e *Engine) RecentActivity(limit int) []generic.CheckIn {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Recent(limit)
}

// Stats returns a copy of the aggregate.
func (e *Engine) Stats() generic.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats.Clone()
}

// GetStats returns the aggregate with the latest check-in and weekly figures,
// all taken from the same state.
func (e *Engine) GetStats() StatsView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	progress := e.uniqueDays(e.weeklyLocked(e.clock.Now()))
	stats := e.stats.Clone()
	view := StatsView{
		CurrentStreak:        stats.CurrentStreak,
		LongestStreak:        stats.LongestStreak,
		TotalCheckIns:        stats.TotalCheckIns,
		FavoriteMysteries:    stats.FavoriteMysteries,
		WeeklyProgress:       progress,
		WeeklyCompletionRate: completionRate(progress),
	}
	if latest, ok := e.ledger.Latest(); ok {
		view.LastCheckIn = &latest
	}
	return view
}

func completionRate(days int) decimal.Decimal {
	rate := decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(WeekDays))
	return decimal.Min(rate, decimal.NewFromInt(1)).Round(2)
}
