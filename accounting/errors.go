/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All error types in one place. Storage failures are always surfaced to
  the caller (never swallowed) and are classifiable with errors.Is; bad
  client input is distinguished so the transport layer can map it to a
  4xx instead of a 5xx.

USAGE:
  if accounting.IsStorage(err) {
      // durable medium failed; retry the whole operation
  }
*/
package accounting

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStorage indicates the durable medium failed (unavailable, disk
	// full, corruption). Fatal to the triggering operation; the caller
	// decides whether to retry.
	ErrStorage = errors.New("storage failure")

	// ErrUnknownCurrency is returned for a currency outside the
	// configured set.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrUnknownShift is returned for a shift name outside the schedule.
	ErrUnknownShift = errors.New("unknown shift")

	// ErrInvalidDate is returned for a malformed business date.
	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// StorageError wraps a database-level failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return ErrStorage
}

// WrapStorage wraps err as a StorageError, passing nil through.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsStorage reports whether err is a durable-medium failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError reports whether err is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnknownCurrency) ||
		errors.Is(err, ErrUnknownShift) ||
		errors.Is(err, ErrInvalidDate)
}
