/*
ledger.go - Newest-first, append-only check-in collection

PURPOSE:
  The Ledger is the source of truth for a user's prayer history.
  Stats can always be rebuilt by replaying it.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: Prepend is the only write. No Update, No Delete.
  2. NEWEST-FIRST: index 0 is the most recently recorded check-in.
  3. COPY-OUT: every read returns a copy; callers can't mutate entries.

CONCURRENCY:
  A Ledger is not safe for concurrent use. The streak engine owns it and
  guards it with its own lock.

SEE ALSO:
  - streak/engine.go: the only writer
  - codec.go: persisted form
*/
package generic

import "time"

// Ledger holds check-ins newest-first.
type Ledger struct {
	entries []CheckIn
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// NewLedgerFrom restores a ledger from persisted entries, newest-first.
// Stored order is kept as-is: it is insertion order, which a backdated
// check-in makes different from CreatedAt order.
func NewLedgerFrom(entries []CheckIn) *Ledger {
	return &Ledger{entries: cloneCheckIns(entries)}
}

// Prepend records a new check-in as the most recent entry.
func (l *Ledger) Prepend(c CheckIn) {
	l.entries = append(l.entries, CheckIn{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = c
}

func (l *Ledger) Len() int { return len(l.entries) }

// Latest returns the most recent check-in.
func (l *Ledger) Latest() (CheckIn, bool) {
	if len(l.entries) == 0 {
		return CheckIn{}, false
	}
	return cloneCheckIn(l.entries[0]), true
}

// Entries returns every check-in, newest-first.
func (l *Ledger) Entries() []CheckIn {
	return cloneCheckIns(l.entries)
}

// Recent returns up to limit check-ins, newest-first.
func (l *Ledger) Recent(limit int) []CheckIn {
	if limit > len(l.entries) {
		limit = len(l.entries)
	}
	if limit <= 0 {
		return []CheckIn{}
	}
	return cloneCheckIns(l.entries[:limit])
}

// Since returns check-ins created at or after cutoff, newest-first.
// Future-dated entries are included.
func (l *Ledger) Since(cutoff time.Time) []CheckIn {
	out := []CheckIn{}
	for _, c := range l.entries {
		if !c.CreatedAt.Before(cutoff) {
			out = append(out, cloneCheckIn(c))
		}
	}
	return out
}

// Chronological returns every check-in oldest-first.
func (l *Ledger) Chronological() []CheckIn {
	out := make([]CheckIn, len(l.entries))
	for i, c := range l.entries {
		out[len(l.entries)-1-i] = cloneCheckIn(c)
	}
	return out
}

// Each calls fn for every check-in newest-first without copying.
// fn must not retain or modify the entry.
func (l *Ledger) Each(fn func(CheckIn)) {
	for _, c := range l.entries {
		fn(c)
	}
}

func cloneCheckIns(in []CheckIn) []CheckIn {
	out := make([]CheckIn, len(in))
	for i, c := range in {
		out[i] = cloneCheckIn(c)
	}
	return out
}

func cloneCheckIn(c CheckIn) CheckIn {
	c.Intentions = append([]IntentionTag(nil), c.Intentions...)
	if c.Social.Comments != nil {
		c.Social.Comments = append([]byte(nil), c.Social.Comments...)
	}
	return c
}
