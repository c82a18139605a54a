/*
errors.go - Centralized error types

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / errors.As or the helpers at
  the bottom of this file.

ERROR CATEGORIES:
  1. Validation errors - bad enum values, rejected before the engine runs
  2. Persistence errors - warning class, in-memory state stays authoritative
  3. Corrupt snapshots - treated as "no history" by the stores

  Clock anomalies (backdated or future check-ins) are NOT errors: the
  streak engine resets the streak instead.

SEE ALSO:
  - codec.go: returns ErrCorruptSnapshot
  - streak/session.go: wraps store failures in PersistenceError
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMystery is returned for a category outside MysteryType.
	ErrInvalidMystery = errors.New("invalid mystery")

	// ErrInvalidIntention is returned for a tag outside IntentionTag.
	ErrInvalidIntention = errors.New("invalid intention")

	// ErrPersistence marks a failed save or load. Non-fatal.
	ErrPersistence = errors.New("persistence failed")

	// ErrCorruptSnapshot is returned when stored data cannot be decoded.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrUserRequired is returned when an operation has no user identity.
	ErrUserRequired = errors.New("user id required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input value.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q is not a recognized value", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError reports a storage failure for one user's ledger.
// The check-in that triggered it is still recorded in memory.
type PersistenceError struct {
	UserID UserID
	Op     string // "save" or "load"
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s ledger for %s: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsWarning returns true for errors that leave in-memory state valid.
func IsWarning(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMystery) ||
		errors.Is(err, ErrInvalidIntention) ||
		errors.Is(err, ErrUserRequired)
}
