/*
service.go - The accounting facade

PURPOSE:
  The API surface the surrounding transport layer calls. Thin
  orchestration over the store: classification happens here, persistence
  happens in the store, and the two effects of a Record call (ledger
  append + aggregate increment) are fused into one storage transaction.

OPERATIONS:
  Record         classify, append to ledger, increment aggregate (atomic)
  Totals         running totals for a business date (optionally one shift)
  CloseShift     move a shift's totals into the archive, zero the live rows
  ArchivedTotals sum of everything closed out for a business date
  Reset          zero a whole business date's live totals (ledger untouched)
  Rebuild        regenerate every aggregate row from the ledger

RESET CAVEAT:
  Reset bypasses the ledger: it diverges aggregates from the ledger
  until the next Rebuild. It exists for manual correction only.
*/
package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is the accounting facade. Safe for concurrent use; per-key
// write serialization and record atomicity are provided by the TxStore.
type Service struct {
	store      TxStore
	schedule   Schedule
	currencies []Currency
	clock      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithSchedule overrides the default shift schedule.
func WithSchedule(s Schedule) Option {
	return func(svc *Service) { svc.schedule = s }
}

// WithCurrencies overrides the supported currency set.
func WithCurrencies(cs []Currency) Option {
	return func(svc *Service) { svc.currencies = cs }
}

// WithClock overrides the wall clock (tests).
func WithClock(clock func() time.Time) Option {
	return func(svc *Service) { svc.clock = clock }
}

// NewService creates a Service over the given store.
func NewService(store TxStore, opts ...Option) *Service {
	svc := &Service{
		store:      store,
		schedule:   DefaultSchedule(),
		currencies: DefaultCurrencies(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Currencies returns the configured currency set.
func (s *Service) Currencies() []Currency {
	out := make([]Currency, len(s.currencies))
	copy(out, s.currencies)
	return out
}

// Now returns the current wall-clock time per the injected clock.
func (s *Service) Now() time.Time {
	return s.clock()
}

// Classify maps a timestamp through the configured schedule.
func (s *Service) Classify(at time.Time) (Shift, Date) {
	return s.schedule.Classify(at)
}

func (s *Service) knownCurrency(c Currency) bool {
	for _, cur := range s.currencies {
		if cur == c {
			return true
		}
	}
	return false
}

// =============================================================================
// RECORD
// =============================================================================

// Record classifies at, appends a ledger record, and increments the
// matching aggregate row. Both effects commit together or not at all:
// a failed Record leaves neither a ledger entry nor an aggregate change.
func (s *Service) Record(ctx context.Context, account AccountID, currency Currency, amount decimal.Decimal, at time.Time) (RecordID, error) {
	if !s.knownCurrency(currency) {
		return 0, &UnknownCurrencyError{Currency: currency, Supported: s.Currencies()}
	}

	shift, date := s.schedule.Classify(at)
	rec := Record{
		Account:      account,
		RecordedAt:   at,
		BusinessDate: date,
		Shift:        shift,
		Currency:     currency,
		Amount:       amount,
	}

	var id RecordID
	err := s.store.WithTx(ctx, func(st Store) error {
		rid, err := st.AppendRecord(ctx, rec)
		if err != nil {
			return err
		}
		id = rid
		return st.IncrementAggregate(ctx, rec.GroupKey(), amount)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Totals returns the running totals for (account, date), summed across
// shifts when shift is nil, zero-filled for every configured currency.
func (s *Service) Totals(ctx context.Context, account AccountID, date Date, shift *Shift) (Totals, error) {
	rows, err := s.store.AggregateRows(ctx, account, date, shift)
	if err != nil {
		return nil, err
	}

	totals := ZeroTotals(s.currencies)
	for _, r := range rows {
		totals.MergeRow(r.Key.Currency, r.Tally)
	}
	return totals, nil
}

// ArchivedTotals sums every archive row for (account, date) across all
// shifts and all close events, grouped by currency.
func (s *Service) ArchivedTotals(ctx context.Context, account AccountID, date Date) (Totals, error) {
	rows, err := s.store.ArchiveRows(ctx, account, date)
	if err != nil {
		return nil, err
	}

	totals := ZeroTotals(s.currencies)
	for _, r := range rows {
		totals.MergeRow(r.Key.Currency, r.Tally)
	}
	return totals, nil
}

// Ledger returns the full ledger ordered by timestamp, for export.
func (s *Service) Ledger(ctx context.Context) ([]Record, error) {
	return s.store.ScanRecords(ctx)
}

// RecentRecords returns the newest ledger records, for audit views.
func (s *Service) RecentRecords(ctx context.Context, limit int) ([]Record, error) {
	return s.store.RecentRecords(ctx, limit)
}

// =============================================================================
// CLOSE / RESET
// =============================================================================

// CloseShift archives the current totals at (account, date, shift) and
// zeroes the live rows, returning the just-archived snapshot. When
// there is nothing to move (no rows, or all counts zero) it is a no-op
// and returns all-zero totals: closing twice never writes zero-value
// archive rows.
func (s *Service) CloseShift(ctx context.Context, account AccountID, date Date, shift Shift) (Totals, error) {
	snapshot := ZeroTotals(s.currencies)
	err := s.store.WithTx(ctx, func(st Store) error {
		rows, err := st.AggregateRows(ctx, account, date, &shift)
		if err != nil {
			return err
		}

		now := s.clock()
		var archived []ArchiveRow
		for _, r := range rows {
			if r.Tally.IsZero() {
				continue
			}
			archived = append(archived, ArchiveRow{Key: r.Key, Tally: r.Tally, ArchivedAt: now})
			snapshot.MergeRow(r.Key.Currency, r.Tally)
		}
		if len(archived) == 0 {
			return nil
		}

		if err := st.AppendArchive(ctx, archived); err != nil {
			return err
		}
		return st.ZeroAggregates(ctx, account, date, &shift)
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Reset zeroes every live aggregate row for (account, date) across all
// shifts. The ledger is untouched, so aggregates diverge from it until
// the next Rebuild.
func (s *Service) Reset(ctx context.Context, account AccountID, date Date) error {
	return s.store.ZeroAggregates(ctx, account, date, nil)
}

// =============================================================================
// INPUT ERRORS
// =============================================================================

// UnknownCurrencyError reports a currency outside the configured set.
type UnknownCurrencyError struct {
	Currency  Currency
	Supported []Currency
}

func (e *UnknownCurrencyError) Error() string {
	return "unknown currency " + string(e.Currency)
}

func (e *UnknownCurrencyError) Unwrap() error {
	return ErrUnknownCurrency
}
