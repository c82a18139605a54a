/*
store.go - Persistence contract for ledger snapshots

PURPOSE:
  Defines the interface between the streak engine and durable storage.
  The engine does not care about the medium; it only relies on the
  load/save contract below.

CONTRACT:
  Save: write-or-raise. Either the whole snapshot is stored or an error
        is returned; a partial record is never visible to Load.
  Load: (nil, nil) on first run. Malformed stored data is ALSO reported
        as (nil, nil): corrupt local state must never block startup.
        Only genuine I/O failures return an error.
        Every timestamp in the returned snapshot is a time.Time.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go:  SQLite, one row per user
  - store/redis/redis.go:    Redis, one key per user

SEE ALSO:
  - codec.go: the encoding every implementation stores
  - streak/session.go: load -> restore -> rehydrate at startup
*/
package generic

import "context"

// Store persists one snapshot per user.
type Store interface {
	// Save replaces the user's stored snapshot.
	Save(ctx context.Context, userID UserID, snap Snapshot) error

	// Load returns the user's snapshot, or nil when there is none or the
	// stored data is unreadable.
	Load(ctx context.Context, userID UserID) (*Snapshot, error)
}

// CorruptionReporter is implemented by stores that can report corrupt
// records they skipped on Load.
type CorruptionReporter interface {
	OnCorrupt(fn func(userID UserID, err error))
}
