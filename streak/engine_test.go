package streak_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/prayer-ledger/generic"
	"github.com/warp/prayer-ledger/streak"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// day0 is a Wednesday morning; tests move the clock in whole days from it.
var day0 = time.Date(2025, time.March, 5, 8, 0, 0, 0, time.UTC)

func sequentialIDs() func() generic.CheckInID {
	var mu sync.Mutex
	n := 0
	return func() generic.CheckInID {
		mu.Lock()
		defer mu.Unlock()
		n++
		return generic.CheckInID(fmt.Sprintf("ci-%d", n))
	}
}

func newTestEngine(t *testing.T, start time.Time) (*streak.Engine, *generic.FixedClock) {
	t.Helper()
	clock := generic.NewFixedClock(start)
	e := streak.NewEngine("user-1",
		streak.WithClock(clock),
		streak.WithLocation(time.UTC),
		streak.WithIDGenerator(sequentialIDs()),
	)
	return e, clock
}

func pray(e *streak.Engine, m generic.MysteryType) generic.CheckIn {
	return e.SubmitCheckIn(generic.CheckInInput{Mystery: m})
}

// prayAt moves the clock to day0 + days (+ extra) and submits.
func prayAt(e *streak.Engine, clock *generic.FixedClock, days int, extra time.Duration, m generic.MysteryType) generic.CheckIn {
	clock.Set(day0.AddDate(0, 0, days).Add(extra))
	return pray(e, m)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_FirstCheckInStartsStreak(t *testing.T) {
	e, clock := newTestEngine(t, day0)

	c := e.SubmitCheckIn(generic.CheckInInput{
		Mystery:    generic.MysteryJoyful,
		Reflection: "Morning rosary",
		Intentions: []generic.IntentionTag{generic.IntentionFamily},
	})

	assert.Equal(t, generic.CheckInID("ci-1"), c.ID)
	assert.Equal(t, generic.UserID("user-1"), c.UserID)
	assert.Equal(t, clock.Now(), c.CreatedAt)
	assert.Equal(t, "Morning rosary", c.Reflection)
	assert.Equal(t, []generic.IntentionTag{generic.IntentionFamily}, c.Intentions)

	stats := e.Stats()
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 1, stats.LongestStreak)
	assert.Equal(t, 1, stats.TotalCheckIns)
	require.NotNil(t, stats.LastPrayedDate)
	assert.Equal(t, c.CreatedAt, *stats.LastPrayedDate)
	assert.Equal(t, []generic.MysteryType{generic.MysteryJoyful}, stats.FavoriteMysteries)
}

func TestSubmit_ReportsTransition(t *testing.T) {
	e, clock := newTestEngine(t, day0)

	assert.Equal(t, streak.TransitionStarted, e.Submit(generic.CheckInInput{Mystery: generic.MysteryJoyful}).Transition)
	assert.Equal(t, streak.TransitionSameDay, e.Submit(generic.CheckInInput{Mystery: generic.MysteryJoyful}).Transition)
	clock.AdvanceDays(1)
	assert.Equal(t, streak.TransitionExtended, e.Submit(generic.CheckInInput{Mystery: generic.MysteryJoyful}).Transition)
	clock.AdvanceDays(5)
	assert.Equal(t, streak.TransitionReset, e.Submit(generic.CheckInInput{Mystery: generic.MysteryJoyful}).Transition)
}

func TestSubmit_ConsecutiveDaysExtendStreak(t *testing.T) {
	// GIVEN: check-ins on D, D+1, D+2
	e, clock := newTestEngine(t, day0)
	prayAt(e, clock, 0, 0, generic.MysteryJoyful)
	prayAt(e, clock, 1, 0, generic.MysteryLuminous)
	prayAt(e, clock, 2, 0, generic.MysterySorrowful)

	// THEN: streak is 3
	stats := e.Stats()
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
}

func TestSubmit_LateNightThenEarlyMorningIsConsecutive(t *testing.T) {
	e, clock := newTestEngine(t, day0)
	prayAt(e, clock, 0, 15*time.Hour+59*time.Minute, generic.MysteryJoyful) // 23:59
	prayAt(e, clock, 1, -8*time.Hour+time.Minute, generic.MysteryJoyful)    // 00:01 next day

	assert.Equal(t, 2, e.Stats().CurrentStreak)
}

func TestSubmit_GapResetsStreak(t *testing.T) {
	// GIVEN: check-ins on D and D+3 (two missed days)
	e, clock := newTestEngine(t, day0)
	prayAt(e, clock, 0, 0, generic.MysteryJoyful)
	prayAt(e, clock, 3, 0, generic.MysteryJoyful)

	// THEN: streak restarts at 1
	assert.Equal(t, 1, e.Stats().CurrentStreak)
	assert.Equal(t, 1, e.Stats().LongestStreak)
}

func TestSubmit_ResetKeepsLongest(t *testing.T) {
	e, clock := newTestEngine(t, day0)
	for d := 0; d < 4; d++ {
		prayAt(e, clock, d, 0, generic.MysteryGlorious)
	}
	prayAt(e, clock, 10, 0, generic.MysteryGlorious)

	stats := e.Stats()
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 4, stats.LongestStreak)
}

func TestSubmit_SameDayDoesNotIncrement(t *testing.T) {
	// GIVEN: a 2-day streak
	e, clock := newTestEngine(t, day0)
	prayAt(e, clock, 0, 0, generic.MysteryJoyful)
	prayAt(e, clock, 1, 0, generic.MysteryJoyful)
	before := e.Stats()

	// WHEN: praying again later the same day
	prayAt(e, clock, 1, 10*time.Hour, generic.MysterySorrowful)

	// THEN: only the total (and favorites) move
	after := e.Stats()
	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)
	assert.Equal(t, before.LongestStreak, after.LongestStreak)
	assert.Equal(t, before.TotalCheckIns+1, after.TotalCheckIns)
	assert.Equal(t, clock.Now(), *after.LastPrayedDate)
}

func TestSubmit_BackdatedClockResetsStreak(t *testing.T) {
	// GIVEN: a 3-day streak
	e, clock := newTestEngine(t, day0)
	for d := 0; d < 3; d++ {
		prayAt(e, clock, d, 0, generic.MysteryJoyful)
	}

	// WHEN: the device clock jumps back two days
	c := prayAt(e, clock, 0, 0, generic.MysteryJoyful)

	// THEN: negative gap resets, nothing is rejected
	stats := e.Stats()
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 4, stats.TotalCheckIns)
	assert.Equal(t, c.CreatedAt, *stats.LastPrayedDate)
	latest := e.RecentActivity(1)
	assert.Equal(t, c.ID, latest[0].ID, "newest-first is insertion order")
}

func TestSubmit_Monotonicity(t *testing.T) {
	// Arbitrary schedule: consecutive, same-day, gaps and a backdated entry.
	offsets := []int{0, 1, 1, 2, 5, 6, 7, 4, 8, 9, 9, 20, 21}
	e, clock := newTestEngine(t, day0)

	prevTotal, prevLongest := 0, 0
	for i, d := range offsets {
		prayAt(e, clock, d, time.Duration(i)*time.Minute, generic.Mysteries[i%len(generic.Mysteries)])
		stats := e.Stats()

		assert.Equal(t, prevTotal+1, stats.TotalCheckIns, "step %d", i)
		assert.GreaterOrEqual(t, stats.LongestStreak, prevLongest, "step %d", i)
		assert.LessOrEqual(t, stats.CurrentStreak, stats.LongestStreak, "step %d", i)
		prevTotal, prevLongest = stats.TotalCheckIns, stats.LongestStreak
	}
	assert.Equal(t, len(offsets), len(e.Snapshot().CheckIns))
}

func TestSubmit_CopiesIntentions(t *testing.T) {
	e, _ := newTestEngine(t, day0)
	tags := []generic.IntentionTag{generic.IntentionPeace}

	e.SubmitCheckIn(generic.CheckInInput{Mystery: generic.MysteryJoyful, Intentions: tags})
	tags[0] = generic.IntentionHealing

	assert.Equal(t, generic.IntentionPeace, e.RecentActivity(1)[0].Intentions[0])
}

func TestNewEngine_DefaultIDsAreUnique(t *testing.T) {
	e := streak.NewEngine("user-1")
	seen := map[generic.CheckInID]bool{}
	for i := 0; i < 50; i++ {
		c := pray(e, generic.MysteryJoyful)
		require.NotEmpty(t, c.ID)
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

// =============================================================================
// FAVORITES
// =============================================================================

func TestFavorites_TiesKeepFirstEncountered(t *testing.T) {
	// GIVEN: counts {A:3, B:3, C:1}; the newest check-in is A, so walking
	//        the ledger newest-first meets A before B
	A, B, C := generic.MysteryGlorious, generic.MysterySorrowful, generic.MysteryLuminous
	e, clock := newTestEngine(t, day0)
	for i, m := range []generic.MysteryType{C, B, A, B, A, B, A} {
		prayAt(e, clock, 0, time.Duration(i)*time.Minute, m)
	}

	assert.Equal(t, []generic.MysteryType{A, B, C}, e.Stats().FavoriteMysteries)
}

func TestFavorites_TopThreeOnly(t *testing.T) {
	e, clock := newTestEngine(t, day0)
	schedule := []generic.MysteryType{
		generic.MysteryJoyful,
		generic.MysteryLuminous, generic.MysteryLuminous,
		generic.MysterySorrowful, generic.MysterySorrowful, generic.MysterySorrowful,
		generic.MysteryGlorious, generic.MysteryGlorious, generic.MysteryGlorious, generic.MysteryGlorious,
	}
	for i, m := range schedule {
		prayAt(e, clock, 0, time.Duration(i)*time.Minute, m)
	}

	assert.Equal(t,
		[]generic.MysteryType{generic.MysteryGlorious, generic.MysterySorrowful, generic.MysteryLuminous},
		e.Stats().FavoriteMysteries)
}

func TestRankFavorites_Deterministic(t *testing.T) {
	A, B, C := generic.MysteryJoyful, generic.MysteryGlorious, generic.MysteryLuminous
	checkIns := []generic.CheckIn{{Mystery: A}, {Mystery: C}, {Mystery: B}, {Mystery: A}, {Mystery: B}, {Mystery: B}, {Mystery: A}}

	for i := 0; i < 20; i++ {
		assert.Equal(t, []generic.MysteryType{A, B, C}, streak.RankFavorites(checkIns))
	}
	assert.Empty(t, streak.RankFavorites(nil))
}

// =============================================================================
// REHYDRATION
// =============================================================================

// seededSnapshot builds a snapshot with a streak of n days ending daysAgo
// days before now.
func seededSnapshot(t *testing.T, now time.Time, n, daysAgo int) generic.Snapshot {
	t.Helper()
	seeder, clock := newTestEngine(t, now)
	for i := n - 1; i >= 0; i-- {
		clock.Set(now.AddDate(0, 0, -(daysAgo + i)))
		pray(seeder, generic.MysteryJoyful)
	}
	snap := seeder.Snapshot()
	require.Equal(t, n, snap.Stats.CurrentStreak)
	return snap
}

func TestRehydrate_LapsedStreakIsZeroed(t *testing.T) {
	// GIVEN: a stored 5-day streak whose last check-in was 3 days ago
	now := day0.AddDate(0, 1, 0)
	e, _ := newTestEngine(t, now)
	require.False(t, e.Restore(seededSnapshot(t, now, 5, 3)))
	require.Equal(t, 5, e.Stats().CurrentStreak)

	// WHEN: rehydrating after a cold start
	changed := e.RehydrateAndRecalculate()

	// THEN: the streak lapsed; longest and total are untouched
	assert.True(t, changed)
	stats := e.Stats()
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Equal(t, 5, stats.LongestStreak)
	assert.Equal(t, 5, stats.TotalCheckIns)
}

func TestRehydrate_YesterdayKeepsStreak(t *testing.T) {
	now := day0.AddDate(0, 1, 0)
	e, _ := newTestEngine(t, now)
	e.Restore(seededSnapshot(t, now, 5, 1))

	assert.False(t, e.RehydrateAndRecalculate())
	assert.Equal(t, 5, e.Stats().CurrentStreak)
	assert.False(t, e.HasCheckedInToday())
}

func TestRehydrate_TodayKeepsStreak(t *testing.T) {
	now := day0.AddDate(0, 1, 0)
	e, _ := newTestEngine(t, now)
	e.Restore(seededSnapshot(t, now, 2, 0))

	assert.False(t, e.RehydrateAndRecalculate())
	assert.Equal(t, 2, e.Stats().CurrentStreak)
	assert.True(t, e.HasCheckedInToday())
}

func TestRehydrate_Idempotent(t *testing.T) {
	now := day0.AddDate(0, 1, 0)
	e, _ := newTestEngine(t, now)
	e.Restore(seededSnapshot(t, now, 5, 3))

	e.RehydrateAndRecalculate()
	first := e.Stats()
	assert.False(t, e.RehydrateAndRecalculate())
	assert.Equal(t, first, e.Stats())
}

func TestRehydrate_EmptyIsNoop(t *testing.T) {
	e, _ := newTestEngine(t, day0)

	assert.False(t, e.RehydrateAndRecalculate())
	assert.Equal(t, generic.Stats{}, e.Stats())
}

func TestRehydrate_ThenSubmitStartsOver(t *testing.T) {
	now := day0.AddDate(0, 1, 0)
	e, _ := newTestEngine(t, now)
	e.Restore(seededSnapshot(t, now, 5, 3))
	e.RehydrateAndRecalculate()

	pray(e, generic.MysteryLuminous)

	stats := e.Stats()
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, 5, stats.LongestStreak)
	assert.Equal(t, 6, stats.TotalCheckIns)
}

// =============================================================================
// RESTORE / REPLAY
// =============================================================================

func TestReplay_MatchesIncrementalSubmission(t *testing.T) {
	offsets := []int{0, 1, 2, 2, 4, 5, 6, 7, 3, 9, 10, 10, 11}
	e, clock := newTestEngine(t, day0)
	for i, d := range offsets {
		prayAt(e, clock, d, time.Duration(i)*time.Minute, generic.Mysteries[(i*3)%len(generic.Mysteries)])
	}

	snap := e.Snapshot()
	assert.Equal(t, snap.Stats, streak.Replay(generic.NewLedgerFrom(snap.CheckIns), time.UTC))
}

func TestRestore_RepairsInconsistentAggregate(t *testing.T) {
	// GIVEN: a snapshot whose aggregate was written by a buggy client
	now := day0.AddDate(0, 1, 0)
	snap := seededSnapshot(t, now, 4, 0)
	snap.Stats.TotalCheckIns = 99
	snap.Stats.LongestStreak = 7
	snap.Stats.CurrentStreak = 2

	e, _ := newTestEngine(t, now)

	// WHEN: restoring
	repaired := e.Restore(snap)

	// THEN: the aggregate is rebuilt from the ledger, the larger longest kept
	assert.True(t, repaired)
	stats := e.Stats()
	assert.Equal(t, 4, stats.TotalCheckIns)
	assert.Equal(t, 4, stats.CurrentStreak)
	assert.Equal(t, 7, stats.LongestStreak)
}

func TestRestore_RepairsMissingLastPrayedDate(t *testing.T) {
	now := day0.AddDate(0, 1, 0)
	snap := seededSnapshot(t, now, 2, 0)
	snap.Stats.LastPrayedDate = nil

	e, _ := newTestEngine(t, now)

	assert.True(t, e.Restore(snap))
	require.NotNil(t, e.Stats().LastPrayedDate)
	assert.Equal(t, snap.CheckIns[0].CreatedAt, *e.Stats().LastPrayedDate)
}

func TestRestore_AcceptsLapsedZeroStreak(t *testing.T) {
	// A zeroed streak persisted after a previous rehydration is valid.
	now := day0.AddDate(0, 1, 0)
	snap := seededSnapshot(t, now, 3, 5)
	snap.Stats.CurrentStreak = 0

	e, _ := newTestEngine(t, now)

	assert.False(t, e.Restore(snap))
	assert.Equal(t, 0, e.Stats().CurrentStreak)
	assert.Equal(t, 3, e.Stats().LongestStreak)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestEngine_ConcurrentSubmitAndRead(t *testing.T) {
	e, _ := newTestEngine(t, day0)
	const writers, perWriter = 8, 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				pray(e, generic.MysteryJoyful)
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				view := e.GetStats()
				if view.TotalCheckIns > 0 {
					assert.NotNil(t, view.LastCheckIn)
				}
				snap := e.Snapshot()
				assert.Equal(t, snap.Stats.TotalCheckIns, len(snap.CheckIns))
			}
		}()
	}
	wg.Wait()

	stats := e.Stats()
	assert.Equal(t, writers*perWriter, stats.TotalCheckIns)
	assert.Equal(t, 1, stats.CurrentStreak)
}
