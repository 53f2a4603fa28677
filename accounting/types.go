/*
Package accounting provides the shift accounting engine.

PURPOSE:
  This package contains the core types and algorithms for cash-register
  style accounting: every reported amount is appended to an immutable
  ledger, attributed to a work shift and a business date, and rolled up
  into running per-shift totals that can always be rebuilt from the
  ledger alone.

KEY CONCEPTS IN THIS FILE (types.go):
  - Record: An immutable ledger entry (one reported amount)
  - Key: The aggregate identity (account, business date, shift, currency)
  - Tally: A running total with its contributing record count
  - Date: A calendar date used as the business date

DESIGN PRINCIPLES:
  1. Immutability: Ledger records are never modified after Append
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derivability: Aggregates and archives are views over the ledger;
     the ledger is the only source of truth
  4. Configuration: The currency set and shift schedule are injected,
     not hardcoded into the algorithms

SEE ALSO:
  - shift.go: Shift windows and timestamp classification
  - store.go: Persistence interface
  - service.go: The facade other components call
*/
package accounting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AccountID identifies the operator account (chat) that reports amounts.
type AccountID int64

// RecordID is the surrogate id assigned to a ledger record on append.
type RecordID int64

// =============================================================================
// CURRENCY
// =============================================================================

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

// DefaultCurrencies is the supported set for the reference deployment.
// The engine itself is generic over any configured set.
func DefaultCurrencies() []Currency {
	return []Currency{CurrencyUSD, CurrencyKHR}
}

// =============================================================================
// SHIFT
// =============================================================================

type Shift string

const (
	Shift1 Shift = "shift1"
	Shift2 Shift = "shift2"
	Shift3 Shift = "shift3"
)

// ParseShift converts an external shift name to a Shift.
func ParseShift(s string) (Shift, error) {
	switch Shift(s) {
	case Shift1, Shift2, Shift3:
		return Shift(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownShift, s)
}

// =============================================================================
// DATE - Calendar date without time-of-day (the business date)
// =============================================================================

// Date is a calendar date. Business dates differ from calendar dates of
// occurrence during the late-night portion of the midnight-crossing shift.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return DateOf(t.AddDate(0, 0, n))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// =============================================================================
// RECORD - Immutable ledger entry
// =============================================================================

// Record is one reported amount. The shift and business date are computed
// once, at write time, from RecordedAt; they are never rederived implicitly
// afterwards (only a full Rebuild reclassifies, and it must agree).
type Record struct {
	ID           RecordID
	Account      AccountID
	RecordedAt   time.Time
	BusinessDate Date
	Shift        Shift
	Currency     Currency
	Amount       decimal.Decimal
}

// GroupKey returns the aggregate identity this record contributes to.
func (r Record) GroupKey() Key {
	return Key{
		Account:      r.Account,
		BusinessDate: r.BusinessDate,
		Shift:        r.Shift,
		Currency:     r.Currency,
	}
}

// =============================================================================
// AGGREGATE / ARCHIVE ROWS
// =============================================================================

// Key identifies one aggregate row. Unique in the aggregate store,
// non-unique in the archive (each close event appends its own rows).
type Key struct {
	Account      AccountID
	BusinessDate Date
	Shift        Shift
	Currency     Currency
}

// Tally is a running total with the number of contributing records.
type Tally struct {
	Total decimal.Decimal
	Count int
}

// Add returns the tally after one more record of the given amount.
func (t Tally) Add(amount decimal.Decimal) Tally {
	return Tally{Total: t.Total.Add(amount), Count: t.Count + 1}
}

// Merge combines two tallies for the same currency.
func (t Tally) Merge(o Tally) Tally {
	return Tally{Total: t.Total.Add(o.Total), Count: t.Count + o.Count}
}

// IsZero reports whether the tally has nothing to archive.
func (t Tally) IsZero() bool {
	return t.Count == 0 && t.Total.IsZero()
}

// AggregateRow is one mutable running-total row.
type AggregateRow struct {
	Key   Key
	Tally Tally
}

// ArchiveRow is one closed-out total. Never mutated once written;
// ArchivedAt distinguishes repeated close events for the same key.
type ArchiveRow struct {
	Key        Key
	Tally      Tally
	ArchivedAt time.Time
}

// =============================================================================
// TOTALS - Query result shape
// =============================================================================

// Totals maps currency to its tally. Query paths zero-fill every currency
// in the configured set, so callers never see an absent currency.
type Totals map[Currency]Tally

// ZeroTotals returns a Totals with a zero tally for each currency.
func ZeroTotals(currencies []Currency) Totals {
	t := make(Totals, len(currencies))
	for _, c := range currencies {
		t[c] = Tally{Total: decimal.Zero}
	}
	return t
}

// MergeRow folds one aggregate-shaped tally into the totals.
func (t Totals) MergeRow(currency Currency, tally Tally) {
	t[currency] = t[currency].Merge(tally)
}
