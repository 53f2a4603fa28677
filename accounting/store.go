/*
store.go - Persistence interface for the ledger, aggregates, and archive

PURPOSE:
  Defines the interface between the engine and the database. One logical
  store holds three collections:

  ledger:     append-only log of every record; the source of truth.
              No Update, no Delete, ever.
  aggregates: mutable running totals, unique per Key. Always
              reconstructible from the ledger.
  archive:    closed-out totals, same key shape but non-unique;
              each close event appends its own rows.

ATOMICITY:
  A ledger append and its aggregate increment must land together or not
  at all, so the facade runs them through WithTx. Implementations must
  roll back every effect when the callback fails.

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL, short-lived transactions)
  - accounting/store: in-memory store for tests and dev
*/
package accounting

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence surface for one logical database.
// All errors returned here are StorageErrors.
type Store interface {
	// AppendRecord appends one immutable record to the ledger and
	// returns its surrogate id. The ONLY ledger write.
	AppendRecord(ctx context.Context, rec Record) (RecordID, error)

	// ScanRecords returns every ledger record ordered by RecordedAt.
	// Used by the rebuild path and read-only export/audit views.
	ScanRecords(ctx context.Context) ([]Record, error)

	// RecentRecords returns the newest records first, for audit views.
	RecentRecords(ctx context.Context, limit int) ([]Record, error)

	// IncrementAggregate adds amount to the row at key, creating it
	// with count=1 when absent. Mutations for the same key are
	// serialized by the implementation.
	IncrementAggregate(ctx context.Context, key Key, amount decimal.Decimal) error

	// AggregateRows returns the rows for (account, date), filtered to
	// one shift when shift is non-nil.
	AggregateRows(ctx context.Context, account AccountID, date Date, shift *Shift) ([]AggregateRow, error)

	// ZeroAggregates sets total=0, count=0 on the matching rows without
	// deleting them. A nil shift zeroes the whole business date.
	ZeroAggregates(ctx context.Context, account AccountID, date Date, shift *Shift) error

	// ReplaceAggregates discards every aggregate row and writes the
	// given rows. Only the rebuild path calls this.
	ReplaceAggregates(ctx context.Context, rows []AggregateRow) error

	// AppendArchive appends closed-out rows to the archive history.
	AppendArchive(ctx context.Context, rows []ArchiveRow) error

	// ArchiveRows returns every archive row for (account, date), across
	// all shifts and all close events.
	ArchiveRows(ctx context.Context, account AccountID, date Date) ([]ArchiveRow, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore adds transaction support. WithTx executes fn against a
// transactional view: if fn returns an error every effect is rolled
// back, otherwise all are committed together. WithTx holds exclusive
// write access for its duration, so a rebuild inside WithTx cannot race
// a concurrent increment.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
