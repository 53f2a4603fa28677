// Package store provides an in-memory TxStore implementation for
// testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/autosum/shift-engine/accounting"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory is an in-memory accounting.TxStore. The ledger slice is kept
// ordered by RecordedAt; aggregate keys keep first-insert order so
// query results are deterministic.
type Memory struct {
	mu         sync.RWMutex
	nextID     accounting.RecordID
	records    []accounting.Record
	aggregates map[accounting.Key]accounting.Tally
	keyOrder   []accounting.Key
	archive    []accounting.ArchiveRow
}

func NewMemory() *Memory {
	return &Memory{
		nextID:     1,
		aggregates: make(map[accounting.Key]accounting.Tally),
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) AppendRecord(_ context.Context, rec accounting.Record) (accounting.RecordID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRecordLocked(rec), nil
}

func (m *Memory) appendRecordLocked(rec accounting.Record) accounting.RecordID {
	rec.ID = m.nextID
	m.nextID++

	// Binary search for the insertion point; equal timestamps keep
	// insertion order.
	i := sort.Search(len(m.records), func(i int) bool {
		return m.records[i].RecordedAt.After(rec.RecordedAt)
	})
	m.records = append(m.records, accounting.Record{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = rec

	return rec.ID
}

func (m *Memory) ScanRecords(_ context.Context) ([]accounting.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanRecordsLocked(), nil
}

func (m *Memory) scanRecordsLocked() []accounting.Record {
	out := make([]accounting.Record, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) RecentRecords(_ context.Context, limit int) ([]accounting.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recentRecordsLocked(limit), nil
}

func (m *Memory) recentRecordsLocked(limit int) []accounting.Record {
	n := len(m.records)
	if limit > n {
		limit = n
	}
	out := make([]accounting.Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.records[i])
	}
	return out
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) IncrementAggregate(_ context.Context, key accounting.Key, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrementLocked(key, amount)
	return nil
}

func (m *Memory) incrementLocked(key accounting.Key, amount decimal.Decimal) {
	tally, ok := m.aggregates[key]
	if !ok {
		m.keyOrder = append(m.keyOrder, key)
	}
	m.aggregates[key] = tally.Add(amount)
}

func (m *Memory) AggregateRows(_ context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) ([]accounting.AggregateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aggregateRowsLocked(account, date, shift), nil
}

func (m *Memory) aggregateRowsLocked(account accounting.AccountID, date accounting.Date, shift *accounting.Shift) []accounting.AggregateRow {
	var rows []accounting.AggregateRow
	for _, k := range m.keyOrder {
		if k.Account != account || k.BusinessDate != date {
			continue
		}
		if shift != nil && k.Shift != *shift {
			continue
		}
		rows = append(rows, accounting.AggregateRow{Key: k, Tally: m.aggregates[k]})
	}
	return rows
}

func (m *Memory) ZeroAggregates(_ context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zeroLocked(account, date, shift)
	return nil
}

func (m *Memory) zeroLocked(account accounting.AccountID, date accounting.Date, shift *accounting.Shift) {
	for _, k := range m.keyOrder {
		if k.Account != account || k.BusinessDate != date {
			continue
		}
		if shift != nil && k.Shift != *shift {
			continue
		}
		m.aggregates[k] = accounting.Tally{Total: decimal.Zero}
	}
}

func (m *Memory) ReplaceAggregates(_ context.Context, rows []accounting.AggregateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(rows)
	return nil
}

func (m *Memory) replaceLocked(rows []accounting.AggregateRow) {
	m.aggregates = make(map[accounting.Key]accounting.Tally, len(rows))
	m.keyOrder = m.keyOrder[:0]
	for _, r := range rows {
		m.aggregates[r.Key] = r.Tally
		m.keyOrder = append(m.keyOrder, r.Key)
	}
}

// =============================================================================
// ARCHIVE
// =============================================================================

func (m *Memory) AppendArchive(_ context.Context, rows []accounting.ArchiveRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = append(m.archive, rows...)
	return nil
}

func (m *Memory) ArchiveRows(_ context.Context, account accounting.AccountID, date accounting.Date) ([]accounting.ArchiveRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.archiveRowsLocked(account, date), nil
}

func (m *Memory) archiveRowsLocked(account accounting.AccountID, date accounting.Date) []accounting.ArchiveRow {
	var rows []accounting.ArchiveRow
	for _, r := range m.archive {
		if r.Key.Account == account && r.Key.BusinessDate == date {
			rows = append(rows, r)
		}
	}
	return rows
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a view of the store, rolling every effect
// back via snapshot restore when fn fails. The write lock is held for
// the duration, which also gives a rebuild exclusive access.
func (m *Memory) WithTx(_ context.Context, fn func(accounting.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryTxView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	nextID     accounting.RecordID
	records    []accounting.Record
	aggregates map[accounting.Key]accounting.Tally
	keyOrder   []accounting.Key
	archive    []accounting.ArchiveRow
}

func (m *Memory) snapshot() memorySnapshot {
	aggs := make(map[accounting.Key]accounting.Tally, len(m.aggregates))
	for k, v := range m.aggregates {
		aggs[k] = v
	}
	return memorySnapshot{
		nextID:     m.nextID,
		records:    append([]accounting.Record(nil), m.records...),
		aggregates: aggs,
		keyOrder:   append([]accounting.Key(nil), m.keyOrder...),
		archive:    append([]accounting.ArchiveRow(nil), m.archive...),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.nextID = s.nextID
	m.records = s.records
	m.aggregates = s.aggregates
	m.keyOrder = s.keyOrder
	m.archive = s.archive
}

// memoryTxView routes store calls to the parent's locked helpers; the
// parent's mutex is already held by WithTx.
type memoryTxView struct {
	parent *Memory
}

func (v *memoryTxView) AppendRecord(_ context.Context, rec accounting.Record) (accounting.RecordID, error) {
	return v.parent.appendRecordLocked(rec), nil
}

func (v *memoryTxView) ScanRecords(_ context.Context) ([]accounting.Record, error) {
	return v.parent.scanRecordsLocked(), nil
}

func (v *memoryTxView) RecentRecords(_ context.Context, limit int) ([]accounting.Record, error) {
	return v.parent.recentRecordsLocked(limit), nil
}

func (v *memoryTxView) IncrementAggregate(_ context.Context, key accounting.Key, amount decimal.Decimal) error {
	v.parent.incrementLocked(key, amount)
	return nil
}

func (v *memoryTxView) AggregateRows(_ context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) ([]accounting.AggregateRow, error) {
	return v.parent.aggregateRowsLocked(account, date, shift), nil
}

func (v *memoryTxView) ZeroAggregates(_ context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) error {
	v.parent.zeroLocked(account, date, shift)
	return nil
}

func (v *memoryTxView) ReplaceAggregates(_ context.Context, rows []accounting.AggregateRow) error {
	v.parent.replaceLocked(rows)
	return nil
}

func (v *memoryTxView) AppendArchive(_ context.Context, rows []accounting.ArchiveRow) error {
	v.parent.archive = append(v.parent.archive, rows...)
	return nil
}

func (v *memoryTxView) ArchiveRows(_ context.Context, account accounting.AccountID, date accounting.Date) ([]accounting.ArchiveRow, error) {
	return v.parent.archiveRowsLocked(account, date), nil
}
