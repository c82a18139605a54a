/*
Package streak derives engagement statistics from a user's check-in ledger.

PURPOSE:
  The Engine owns one user's Ledger and Stats. It is the ONLY writer of
  Stats: every submission runs the streak transition, appends to the
  ledger and refreshes the aggregate as one unit under the engine lock.

STREAK TRANSITION (on submit):
  already checked in today     -> unchanged
  no previous check-in         -> 1
  previous check-in yesterday  -> +1
  gap of 2+ days, or backdated -> 1

REHYDRATION:
  A streak can lapse while the process is not running. After loading a
  snapshot, RehydrateAndRecalculate zeroes the current streak when the
  last check-in is more than one local day old. Run it once per load,
  before anything reads the stats. Running it again changes nothing.

CONCURRENCY:
  Submissions take the write lock; queries take the read lock and see
  the state either fully before or fully after a submission.

SEE ALSO:
  - queries.go: weekly window, recent activity, stats view
  - replay.go: rebuilding Stats from a ledger
  - session.go: persistence around the engine
*/
package streak

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/prayer-ledger/generic"
)

// Transition describes what a submission did to the current streak.
type Transition int

const (
	TransitionStarted  Transition = iota // first check-in ever
	TransitionExtended                   // previous check-in was yesterday
	TransitionSameDay                    // already checked in today
	TransitionReset                      // gap, or clock went backwards
)

func (t Transition) String() string {
	switch t {
	case TransitionStarted:
		return "started"
	case TransitionExtended:
		return "extended"
	case TransitionSameDay:
		return "same_day"
	case TransitionReset:
		return "reset"
	}
	return "unknown"
}

// Outcome is the result of one submission.
type Outcome struct {
	CheckIn    generic.CheckIn
	Transition Transition
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	mu     sync.RWMutex
	userID generic.UserID
	clock  generic.Clock
	loc    *time.Location
	newID  func() generic.CheckInID
	ledger *generic.Ledger
	stats  generic.Stats
}

type Option func(*Engine)

// WithClock sets the source of "now".
func WithClock(c generic.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLocation sets the timezone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() generic.CheckInID) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func NewEngine(userID generic.UserID, opts ...Option) *Engine {
	e := &Engine{
		userID: userID,
		clock:  generic.SystemClock{},
		loc:    time.Local,
		newID:  func() generic.CheckInID { return generic.CheckInID(uuid.NewString()) },
		ledger: generic.NewLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) UserID() generic.UserID   { return e.userID }
func (e *Engine) Location() *time.Location { return e.loc }

// SubmitCheckIn records a prayer and updates the aggregate.
// Input must already be validated.
func (e *Engine) SubmitCheckIn(in generic.CheckInInput) generic.CheckIn {
	return e.Submit(in).CheckIn
}

// Submit is SubmitCheckIn that also reports the streak transition.
func (e *Engine) Submit(in generic.CheckInInput) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	alreadyToday := e.checkedInTodayLocked(now)

	c := generic.CheckIn{
		ID:         e.newID(),
		UserID:     e.userID,
		Mystery:    in.Mystery,
		Reflection: in.Reflection,
		Intentions: append([]generic.IntentionTag(nil), in.Intentions...),
		CreatedAt:  now,
	}

	transition := TransitionSameDay
	if !alreadyToday {
		transition = advance(&e.stats, now, e.loc)
	}
	if e.stats.CurrentStreak > e.stats.LongestStreak {
		e.stats.LongestStreak = e.stats.CurrentStreak
	}
	e.stats.TotalCheckIns++
	last := now
	e.stats.LastPrayedDate = &last

	e.ledger.Prepend(c)
	e.stats.FavoriteMysteries = favoritesOf(e.ledger)

	return Outcome{CheckIn: c, Transition: transition}
}

// advance applies the streak transition for a check-in at now.
// Shared by Submit and Replay.
func advance(stats *generic.Stats, now time.Time, loc *time.Location) Transition {
	if stats.LastPrayedDate == nil {
		stats.CurrentStreak = 1
		return TransitionStarted
	}
	switch d := generic.DayDifference(now, *stats.LastPrayedDate, loc); {
	case d == 0:
		return TransitionSameDay
	case d == 1:
		stats.CurrentStreak++
		return TransitionExtended
	default:
		stats.CurrentStreak = 1
		return TransitionReset
	}
}

// RehydrateAndRecalculate zeroes a streak that lapsed while no events
// arrived. Returns true if it changed the current streak.
func (e *Engine) RehydrateAndRecalculate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stats.LastPrayedDate == nil {
		return false
	}
	d := generic.DayDifference(e.clock.Now(), *e.stats.LastPrayedDate, e.loc)
	if d > 1 && e.stats.CurrentStreak != 0 {
		e.stats.CurrentStreak = 0
		return true
	}
	return false
}

// Restore replaces the engine state with a loaded snapshot. When the
// stored aggregate contradicts the ledger it is rebuilt by replay, and
// Restore returns true.
func (e *Engine) Restore(snap generic.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger = generic.NewLedgerFrom(snap.CheckIns)
	stats := snap.Stats.Clone()
	repaired := false
	if !consistent(stats, e.ledger, e.clock.Now(), e.loc) {
		replayed := Replay(e.ledger, e.loc)
		if stats.LongestStreak > replayed.LongestStreak {
			replayed.LongestStreak = stats.LongestStreak
		}
		stats = replayed
		repaired = true
	}
	stats.FavoriteMysteries = favoritesOf(e.ledger)
	e.stats = stats
	return repaired
}

func consistent(s generic.Stats, l *generic.Ledger, now time.Time, loc *time.Location) bool {
	if s.CurrentStreak < 0 || s.LongestStreak < 0 || s.CurrentStreak > s.LongestStreak {
		return false
	}
	if s.TotalCheckIns != l.Len() {
		return false
	}
	latest, ok := l.Latest()
	if !ok {
		return s.LastPrayedDate == nil && s.CurrentStreak == 0
	}
	if s.LastPrayedDate == nil || !s.LastPrayedDate.Equal(latest.CreatedAt) {
		return false
	}
	// A streak that hasn't lapsed can't be zero.
	return s.CurrentStreak > 0 || generic.DayDifference(now, latest.CreatedAt, loc) > 1
}

// Snapshot returns a copy of the ledger and aggregate.
func (e *Engine) Snapshot() generic.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return generic.Snapshot{
		UserID:   e.userID,
		Stats:    e.stats.Clone(),
		CheckIns: e.ledger.Entries(),
	}
}
