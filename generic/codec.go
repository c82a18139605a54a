package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotSchemaVersion is written into every encoded snapshot.
const SnapshotSchemaVersion = 1

// Persisted form. Timestamps are RFC 3339 with nanoseconds so an encoded
// snapshot decodes to the exact same instants.
type snapshotRecord struct {
	SchemaVersion int             `json:"schema_version"`
	UserID        string          `json:"user_id"`
	Stats         statsRecord     `json:"stats"`
	CheckIns      []checkInRecord `json:"check_ins"`
}

type statsRecord struct {
	CurrentStreak     int      `json:"current_streak"`
	LongestStreak     int      `json:"longest_streak"`
	TotalCheckIns     int      `json:"total_check_ins"`
	LastPrayedDate    *string  `json:"last_prayed_date,omitempty"`
	FavoriteMysteries []string `json:"favorite_mysteries"`
}

type checkInRecord struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Mystery       string          `json:"mystery"`
	Reflection    string          `json:"reflection,omitempty"`
	Intentions    []string        `json:"intentions,omitempty"`
	CreatedAt     string          `json:"created_at"`
	Amens         int             `json:"amens"`
	HasUserAmened bool            `json:"has_user_amened"`
	Comments      json.RawMessage `json:"comments,omitempty"`
}

// EncodeSnapshot serializes a snapshot for storage.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	rec := snapshotRecord{
		SchemaVersion: SnapshotSchemaVersion,
		UserID:        string(snap.UserID),
		Stats: statsRecord{
			CurrentStreak:     snap.Stats.CurrentStreak,
			LongestStreak:     snap.Stats.LongestStreak,
			TotalCheckIns:     snap.Stats.TotalCheckIns,
			FavoriteMysteries: make([]string, len(snap.Stats.FavoriteMysteries)),
		},
		CheckIns: make([]checkInRecord, len(snap.CheckIns)),
	}
	if snap.Stats.LastPrayedDate != nil {
		s := formatInstant(*snap.Stats.LastPrayedDate)
		rec.Stats.LastPrayedDate = &s
	}
	for i, m := range snap.Stats.FavoriteMysteries {
		rec.Stats.FavoriteMysteries[i] = string(m)
	}
	for i, c := range snap.CheckIns {
		r := checkInRecord{
			ID:            string(c.ID),
			UserID:        string(c.UserID),
			Mystery:       string(c.Mystery),
			Reflection:    c.Reflection,
			CreatedAt:     formatInstant(c.CreatedAt),
			Amens:         c.Social.Amens,
			HasUserAmened: c.Social.HasUserAmened,
			Comments:      c.Social.Comments,
		}
		for _, t := range c.Intentions {
			r.Intentions = append(r.Intentions, string(t))
		}
		rec.CheckIns[i] = r
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot for %s: %w", snap.UserID, err)
	}
	return data, nil
}

// DecodeSnapshot parses stored data. Any structural problem (bad JSON,
// unknown schema version, unknown enum value, unparseable timestamp,
// missing id) is reported as ErrCorruptSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var rec snapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if rec.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptSnapshot, rec.SchemaVersion)
	}

	snap := &Snapshot{
		UserID: UserID(rec.UserID),
		Stats: Stats{
			CurrentStreak: rec.Stats.CurrentStreak,
			LongestStreak: rec.Stats.LongestStreak,
			TotalCheckIns: rec.Stats.TotalCheckIns,
		},
		CheckIns: make([]CheckIn, 0, len(rec.CheckIns)),
	}
	if rec.Stats.LastPrayedDate != nil {
		t, err := parseInstant(*rec.Stats.LastPrayedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: last_prayed_date: %v", ErrCorruptSnapshot, err)
		}
		snap.Stats.LastPrayedDate = &t
	}
	for _, raw := range rec.Stats.FavoriteMysteries {
		m := MysteryType(raw)
		if !m.Valid() {
			return nil, fmt.Errorf("%w: favorite mystery %q", ErrCorruptSnapshot, raw)
		}
		snap.Stats.FavoriteMysteries = append(snap.Stats.FavoriteMysteries, m)
	}

	for i, r := range rec.CheckIns {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: check-in %d has no id", ErrCorruptSnapshot, i)
		}
		m := MysteryType(r.Mystery)
		if !m.Valid() {
			return nil, fmt.Errorf("%w: check-in %s mystery %q", ErrCorruptSnapshot, r.ID, r.Mystery)
		}
		createdAt, err := parseInstant(r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: check-in %s created_at: %v", ErrCorruptSnapshot, r.ID, err)
		}
		c := CheckIn{
			ID:         CheckInID(r.ID),
			UserID:     UserID(r.UserID),
			Mystery:    m,
			Reflection: r.Reflection,
			CreatedAt:  createdAt,
			Social: Social{
				Amens:         r.Amens,
				HasUserAmened: r.HasUserAmened,
				Comments:      r.Comments,
			},
		}
		for _, raw := range r.Intentions {
			t := IntentionTag(raw)
			if !t.Valid() {
				return nil, fmt.Errorf("%w: check-in %s intention %q", ErrCorruptSnapshot, r.ID, raw)
			}
			c.Intentions = append(c.Intentions, t)
		}
		snap.CheckIns = append(snap.CheckIns, c)
	}
	return snap, nil
}

func formatInstant(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
