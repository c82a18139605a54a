/*
Package generic provides the domain types and building blocks of the
prayer check-in ledger.

PURPOSE:
  This package holds everything the streak engine is built from but
  that carries no streak logic itself: the check-in record, the
  enumerated categories, the aggregate statistics shape, the newest-first
  ledger, the persistence contract and its codec, and calendar-day math.

KEY CONCEPTS IN THIS FILE (types.go):
  - CheckIn: one recorded prayer event (immutable once created)
  - MysteryType: fixed category enumeration a check-in is tagged with
  - IntentionTag: enumerated purpose labels (ordered set per check-in)
  - Stats: the per-user aggregate derived from the ledger
  - Snapshot: ledger + aggregate, the unit of persistence

DESIGN PRINCIPLES:
  1. Check-ins are created once and never edited by the core
  2. Stats is a cache of a fold over the ledger, never authored directly
  3. Social fields are opaque payload owned by another surface

SEE ALSO:
  - ledger.go: newest-first collection of check-ins
  - codec.go: persisted form of Snapshot
  - streak/engine.go: the only writer of Stats
*/
package generic

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CheckInID string

// User is the identity resolved by the identity collaborator.
type User struct {
	ID          UserID
	DisplayName string
}

// =============================================================================
// MYSTERY TYPE - The category a check-in is tagged with
// =============================================================================

type MysteryType string

const (
	MysteryJoyful    MysteryType = "joyful"
	MysterySorrowful MysteryType = "sorrowful"
	MysteryGlorious  MysteryType = "glorious"
	MysteryLuminous  MysteryType = "luminous"
)

// Mysteries lists every MysteryType in display order.
var Mysteries = []MysteryType{MysteryJoyful, MysteryLuminous, MysterySorrowful, MysteryGlorious}

func (m MysteryType) Valid() bool {
	switch m {
	case MysteryJoyful, MysterySorrowful, MysteryGlorious, MysteryLuminous:
		return true
	}
	return false
}

// ParseMystery validates a raw category value. Case-insensitive.
func ParseMystery(s string) (MysteryType, error) {
	m := MysteryType(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", &ValidationError{Field: "mystery", Value: s, Err: ErrInvalidMystery}
	}
	return m, nil
}

// =============================================================================
// INTENTION TAG
// =============================================================================

type IntentionTag string

const (
	IntentionFamily       IntentionTag = "family"
	IntentionPeace        IntentionTag = "peace"
	IntentionHealing      IntentionTag = "healing"
	IntentionThanksgiving IntentionTag = "thanksgiving"
	IntentionVocations    IntentionTag = "vocations"
	IntentionSouls        IntentionTag = "souls"
	IntentionConversion   IntentionTag = "conversion"
	IntentionPersonal     IntentionTag = "personal"
)

var Intentions = []IntentionTag{
	IntentionFamily, IntentionPeace, IntentionHealing, IntentionThanksgiving,
	IntentionVocations, IntentionSouls, IntentionConversion, IntentionPersonal,
}

func (t IntentionTag) Valid() bool {
	for _, known := range Intentions {
		if t == known {
			return true
		}
	}
	return false
}

// ParseIntentions validates raw tags and removes duplicates, keeping the
// first occurrence of each.
func ParseIntentions(raw []string) ([]IntentionTag, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	seen := make(map[IntentionTag]bool, len(raw))
	tags := make([]IntentionTag, 0, len(raw))
	for _, s := range raw {
		t := IntentionTag(strings.ToLower(strings.TrimSpace(s)))
		if !t.Valid() {
			return nil, &ValidationError{Field: "intentions", Value: s, Err: ErrInvalidIntention}
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags, nil
}

// =============================================================================
// CHECK-IN - One prayer event
// =============================================================================

// CheckIn is one recorded prayer. Created once by the streak engine;
// only the Social payload is ever changed afterwards, and not by the core.
type CheckIn struct {
	ID         CheckInID
	UserID     UserID
	Mystery    MysteryType
	Reflection string
	Intentions []IntentionTag
	CreatedAt  time.Time
	Social     Social
}

// Social carries reactions owned by the social-interaction surface.
type Social struct {
	Amens         int
	HasUserAmened bool
	Comments      json.RawMessage
}

// CheckInInput is a validated submission.
type CheckInInput struct {
	Mystery    MysteryType
	Reflection string
	Intentions []IntentionTag
}

// =============================================================================
// STATS - Aggregate derived from the ledger
// =============================================================================

// Stats is the per-user aggregate. Invariants:
//   - TotalCheckIns == ledger length
//   - CurrentStreak <= LongestStreak
//   - LastPrayedDate is the newest check-in's CreatedAt, nil iff no check-ins
type Stats struct {
	CurrentStreak     int
	LongestStreak     int
	TotalCheckIns     int
	LastPrayedDate    *time.Time
	FavoriteMysteries []MysteryType
}

// Clone returns a deep copy.
func (s Stats) Clone() Stats {
	out := s
	if s.LastPrayedDate != nil {
		t := *s.LastPrayedDate
		out.LastPrayedDate = &t
	}
	out.FavoriteMysteries = append([]MysteryType(nil), s.FavoriteMysteries...)
	return out
}

// Snapshot is one user's ledger plus aggregate: the unit of persistence.
type Snapshot struct {
	UserID   UserID
	Stats    Stats
	CheckIns []CheckIn // newest-first
}
