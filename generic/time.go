/*
time.go - Clock and calendar-day arithmetic

PURPOSE:
  Streaks are counted in LOCAL calendar days, not in 24h durations.
  Everything that asks "same day?" or "yesterday?" goes through the
  helpers in this file so the rule lives in exactly one place.

DST:
  A local day is 23h or 25h long twice a year. DayDifference never
  divides a duration by 24h: it normalizes both instants to their local
  date and counts calendar days between the dates.

CLOCKS:
  SystemClock:  wall clock, used in production
  FixedClock:   settable clock for tests and demo seeding

SEE ALSO:
  - ledger.go: Since() uses LocalMidnight cutoffs
  - streak/engine.go: streak transitions use DayDifference
*/
package generic

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the current instant. Injected so tests can control "now".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock returns a settable instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// AdvanceDays moves the clock by n calendar days, keeping the local wall time.
func (c *FixedClock) AdvanceDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}

// =============================================================================
// CALENDAR DAYS
// =============================================================================

// LocalMidnight truncates t to the start of its calendar day in loc.
// A nil loc uses t's own location.
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayDifference returns the number of calendar days from b to a in loc.
// Positive when a falls on a later local day than b.
func DayDifference(a, b time.Time, loc *time.Location) int {
	return dayNumber(a, loc) - dayNumber(b, loc)
}

// dayNumber maps the local date of t onto a day count. The date is
// re-anchored in UTC where every day is exactly 24h long.
func dayNumber(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DaysAgoMidnight returns the local midnight n calendar days before t.
func DaysAgoMidnight(t time.Time, n int, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, loc)
}

// DayKey formats the local date of t as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = t.Location()
	}
	return t.In(loc).Format("2006-01-02")
}
