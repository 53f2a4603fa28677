package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autosum/shift-engine/accounting"
	"github.com/autosum/shift-engine/store/sqlite"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRecord(at time.Time, currency accounting.Currency, amount string) accounting.Record {
	return accounting.Record{
		Account:      1,
		RecordedAt:   at,
		BusinessDate: accounting.DateOf(at),
		Shift:        accounting.Shift1,
		Currency:     currency,
		Amount:       decimal.RequireFromString(amount),
	}
}

func sampleKey(date accounting.Date, shift accounting.Shift, currency accounting.Currency) accounting.Key {
	return accounting.Key{Account: 1, BusinessDate: date, Shift: shift, Currency: currency}
}

var jan1 = accounting.Date{Year: 2024, Month: time.January, Day: 1}

// =============================================================================
// LEDGER
// =============================================================================

func TestAppendAndScanRecords(t *testing.T) {
	// GIVEN: an empty store
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC)

	// WHEN: a record is appended
	rec := sampleRecord(at, accounting.CurrencyUSD, "5.75")
	id, err := st.AppendRecord(ctx, rec)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	// THEN: the scan returns it field for field
	records, err := st.ScanRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.EqualValues(t, 1, got.ID)
	assert.EqualValues(t, 1, got.Account)
	assert.True(t, got.RecordedAt.Equal(at))
	assert.Equal(t, jan1, got.BusinessDate)
	assert.Equal(t, accounting.Shift1, got.Shift)
	assert.Equal(t, accounting.CurrencyUSD, got.Currency)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("5.75")))
}

func TestScanRecords_OrderedByTimestamp(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	// Append out of timestamp order.
	_, err := st.AppendRecord(ctx, sampleRecord(base.Add(time.Hour), accounting.CurrencyUSD, "2"))
	require.NoError(t, err)
	_, err = st.AppendRecord(ctx, sampleRecord(base, accounting.CurrencyUSD, "1"))
	require.NoError(t, err)

	records, err := st.ScanRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].RecordedAt.Before(records[1].RecordedAt))
}

func TestRecentRecords_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := st.AppendRecord(ctx, sampleRecord(base.Add(time.Duration(i)*time.Minute), accounting.CurrencyUSD, "1"))
		require.NoError(t, err)
	}

	recent, err := st.RecentRecords(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.EqualValues(t, 4, recent[0].ID)
	assert.EqualValues(t, 3, recent[1].ID)
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestIncrementAggregate_CreateThenAdd(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	key := sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD)

	require.NoError(t, st.IncrementAggregate(ctx, key, decimal.RequireFromString("5.00")))
	require.NoError(t, st.IncrementAggregate(ctx, key, decimal.RequireFromString("0.25")))

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].Key)
	assert.True(t, rows[0].Tally.Total.Equal(decimal.RequireFromString("5.25")))
	assert.Equal(t, 2, rows[0].Tally.Count)
}

func TestAggregateRows_ShiftFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD), decimal.RequireFromString("1")))
	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift2, accounting.CurrencyUSD), decimal.RequireFromString("2")))
	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift2, accounting.CurrencyKHR), decimal.RequireFromString("4000")))

	all, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	shift := accounting.Shift2
	filtered, err := st.AggregateRows(ctx, 1, jan1, &shift)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, r := range filtered {
		assert.Equal(t, accounting.Shift2, r.Key.Shift)
	}
}

func TestZeroAggregates_KeepsRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD), decimal.RequireFromString("5")))
	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift2, accounting.CurrencyUSD), decimal.RequireFromString("7")))

	// Zero one shift only.
	shift := accounting.Shift1
	require.NoError(t, st.ZeroAggregates(ctx, 1, jan1, &shift))

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2, "zeroed rows are kept, not deleted")
	for _, r := range rows {
		if r.Key.Shift == accounting.Shift1 {
			assert.True(t, r.Tally.Total.IsZero())
			assert.Equal(t, 0, r.Tally.Count)
		} else {
			assert.True(t, r.Tally.Total.Equal(decimal.RequireFromString("7")))
		}
	}

	// Nil shift zeroes the rest of the date.
	require.NoError(t, st.ZeroAggregates(ctx, 1, jan1, nil))
	rows, err = st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	for _, r := range rows {
		assert.True(t, r.Tally.Total.IsZero())
	}
}

func TestReplaceAggregates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD), decimal.RequireFromString("99")))

	replacement := []accounting.AggregateRow{
		{
			Key:   sampleKey(jan1, accounting.Shift2, accounting.CurrencyKHR),
			Tally: accounting.Tally{Total: decimal.RequireFromString("4000"), Count: 2},
		},
	}
	require.NoError(t, st.ReplaceAggregates(ctx, replacement))

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1, "previous rows are gone")
	assert.Equal(t, replacement[0].Key, rows[0].Key)
	assert.True(t, rows[0].Tally.Total.Equal(decimal.RequireFromString("4000")))
	assert.Equal(t, 2, rows[0].Tally.Count)
}

// =============================================================================
// ARCHIVE
// =============================================================================

func TestArchive_AppendAndQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	archivedAt := time.Date(2024, 1, 1, 18, 5, 0, 0, time.UTC)

	batch := []accounting.ArchiveRow{
		{
			Key:        sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD),
			Tally:      accounting.Tally{Total: decimal.RequireFromString("8.00"), Count: 2},
			ArchivedAt: archivedAt,
		},
		{
			Key:        sampleKey(jan1, accounting.Shift1, accounting.CurrencyKHR),
			Tally:      accounting.Tally{Total: decimal.RequireFromString("4000"), Count: 1},
			ArchivedAt: archivedAt,
		},
	}
	require.NoError(t, st.AppendArchive(ctx, batch))

	// A later close event for the same key appends, never merges.
	later := archivedAt.Add(4 * time.Hour)
	require.NoError(t, st.AppendArchive(ctx, []accounting.ArchiveRow{{
		Key:        sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD),
		Tally:      accounting.Tally{Total: decimal.RequireFromString("3.00"), Count: 1},
		ArchivedAt: later,
	}}))

	rows, err := st.ArchiveRows(ctx, 1, jan1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].ArchivedAt.Equal(archivedAt))
	assert.True(t, rows[2].ArchivedAt.Equal(later))
	assert.True(t, rows[2].Tally.Total.Equal(decimal.RequireFromString("3.00")))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: a store with one committed record
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	_, err := st.AppendRecord(ctx, sampleRecord(at, accounting.CurrencyUSD, "1"))
	require.NoError(t, err)

	// WHEN: a transaction writes to all three collections and fails
	boom := errors.New("boom")
	err = st.WithTx(ctx, func(tx accounting.Store) error {
		if _, err := tx.AppendRecord(ctx, sampleRecord(at.Add(time.Minute), accounting.CurrencyUSD, "2")); err != nil {
			return err
		}
		if err := tx.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD), decimal.RequireFromString("2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: none of the in-transaction writes survive
	records, err := st.ScanRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWithTx_CommitsAllEffects(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

	err := st.WithTx(ctx, func(tx accounting.Store) error {
		if _, err := tx.AppendRecord(ctx, sampleRecord(at, accounting.CurrencyUSD, "5")); err != nil {
			return err
		}
		return tx.IncrementAggregate(ctx, sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD), decimal.RequireFromString("5"))
	})
	require.NoError(t, err)

	records, err := st.ScanRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Tally.Total.Equal(decimal.RequireFromString("5")))
}

func TestWithTx_ReadsSeeInTransactionWrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

	err := st.WithTx(ctx, func(tx accounting.Store) error {
		if _, err := tx.AppendRecord(ctx, sampleRecord(at, accounting.CurrencyUSD, "5")); err != nil {
			return err
		}
		records, err := tx.ScanRecords(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, records, 1)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentTransactions(t *testing.T) {
	// 20 goroutines each run a full append+increment transaction; the
	// store serializes them and none is lost.
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	key := sampleKey(jan1, accounting.Shift1, accounting.CurrencyUSD)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = st.WithTx(ctx, func(tx accounting.Store) error {
				rec := sampleRecord(base.Add(time.Duration(i)*time.Second), accounting.CurrencyUSD, "1")
				if _, err := tx.AppendRecord(ctx, rec); err != nil {
					return err
				}
				return tx.IncrementAggregate(ctx, key, decimal.NewFromInt(1))
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}

	records, err := st.ScanRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)

	rows, err := st.AggregateRows(ctx, 1, jan1, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Tally.Total.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 20, rows[0].Tally.Count)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestReopen_KeepsData(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/accounting.db"
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

	st, err := sqlite.New(path)
	require.NoError(t, err)
	_, err = st.AppendRecord(ctx, sampleRecord(at, accounting.CurrencyUSD, "5.00"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { st2.Close() })

	records, err := st2.ScanRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Amount.Equal(decimal.RequireFromString("5.00")))
}
