/*
Package sqlite provides a SQLite-backed generic.Store.

PURPOSE:
  Durable local storage for ledger snapshots. Each user has exactly one
  row holding the encoded snapshot plus a few denormalized columns for
  inspection (check-in count, last prayed instant).

CONTRACT (see generic/store.go):
  Save: one transaction per call. The row is replaced whole or not at
        all; a failed save returns an error and leaves the old row.
  Load: missing row -> (nil, nil). Undecodable payload -> (nil, nil)
        and the OnCorrupt callback fires. I/O failures are returned.

CONNECTIONS:
  Every call acquires a dedicated *sql.Conn and releases it before
  returning. Writes are serialized with a mutex; SQLite has a single
  writer anyway.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the writer
  and a crash mid-write leaves the previous row intact.

MIGRATION:
  Schema is managed by golang-migrate from SQL files embedded in the
  binary (migrations/). New() applies pending migrations.

USAGE:
  store, err := sqlite.New("./data/prayer.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/codec.go: payload encoding
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/prayer-ledger/generic"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width UTC so stored instants sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// Store implements generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	onCorrupt func(generic.UserID, error)
}

// New opens (or creates) the database and applies migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	// Not closed: closing the migrator would close db.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnCorrupt registers a callback for rows skipped as unreadable.
func (s *Store) OnCorrupt(fn func(generic.UserID, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCorrupt = fn
}

// =============================================================================
// SNAPSHOT STORE (generic.Store interface)
// =============================================================================

// Save replaces the user's row inside a transaction.
func (s *Store) Save(ctx context.Context, userID generic.UserID, snap generic.Snapshot) error {
	payload, err := generic.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	var lastPrayed sql.NullString
	if snap.Stats.LastPrayedDate != nil {
		lastPrayed = sql.NullString{String: formatTime(*snap.Stats.LastPrayedDate), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin save: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledgers (user_id, schema_version, payload, check_in_count, last_prayed_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				schema_version = excluded.schema_version,
				payload        = excluded.payload,
				check_in_count = excluded.check_in_count,
				last_prayed_at = excluded.last_prayed_at,
				updated_at     = excluded.updated_at
		`,
			string(userID),
			generic.SnapshotSchemaVersion,
			string(payload),
			len(snap.CheckIns),
			lastPrayed,
			formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("failed to save ledger: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit ledger: %w", err)
		}
		return nil
	})
}

// Load returns the user's snapshot, or nil if missing or unreadable.
func (s *Store) Load(ctx context.Context, userID generic.UserID) (*generic.Snapshot, error) {
	var payload string
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx,
			`SELECT payload FROM ledgers WHERE user_id = ?`, string(userID),
		).Scan(&payload)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	snap, err := generic.DecodeSnapshot([]byte(payload))
	if err != nil {
		s.mu.Lock()
		report := s.onCorrupt
		s.mu.Unlock()
		if report != nil {
			report(userID, err)
		}
		return nil, nil
	}
	return snap, nil
}

// =============================================================================
// INSPECTION
// =============================================================================

// LedgerRecord summarizes one stored row.
type LedgerRecord struct {
	UserID       generic.UserID
	CheckIns     int
	LastPrayedAt *time.Time
	UpdatedAt    time.Time
}

// ListLedgers returns a summary of every stored ledger, most recently
// prayed first.
func (s *Store) ListLedgers(ctx context.Context) ([]LedgerRecord, error) {
	var records []LedgerRecord
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT user_id, check_in_count, last_prayed_at, updated_at
			FROM ledgers
			ORDER BY last_prayed_at DESC, user_id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r          LedgerRecord
				userID     string
				lastPrayed sql.NullString
				updatedAt  string
			)
			if err := rows.Scan(&userID, &r.CheckIns, &lastPrayed, &updatedAt); err != nil {
				return err
			}
			r.UserID = generic.UserID(userID)
			if lastPrayed.Valid {
				t, err := time.Parse(time.RFC3339Nano, lastPrayed.String)
				if err != nil {
					return fmt.Errorf("user %s: last_prayed_at: %w", userID, err)
				}
				r.LastPrayedAt = &t
			}
			t, err := time.Parse(time.RFC3339Nano, updatedAt)
			if err != nil {
				return fmt.Errorf("user %s: updated_at: %w", userID, err)
			}
			r.UpdatedAt = t
			records = append(records, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}
	return records, nil
}

// PutRaw stores a payload without encoding it. Used for imports and to
// simulate corrupted local state.
func (s *Store) PutRaw(ctx context.Context, userID generic.UserID, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO ledgers (user_id, schema_version, payload, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
		`, string(userID), generic.SnapshotSchemaVersion, payload, formatTime(time.Now()))
		return err
	})
}

// withConn runs fn on a dedicated connection and always releases it.
func (s *Store) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}
