/*
Package sqlite provides the SQLite-backed accounting store.

PURPOSE:
  Implements accounting.TxStore against a single SQLite database holding
  the three collections: ledger (append-only), aggregates (unique per
  key), archive (append-only history of close events).

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE ever touches the ledger or archive tables. The
  only destructive statement in this package is the aggregate wipe
  inside ReplaceAggregates, and aggregates are a derived view.

CONCURRENCY:
  A sync.RWMutex serializes writers; WithTx holds the write lock for
  the whole callback, which makes the ledger-append + aggregate-
  increment pair atomic and gives a rebuild exclusive access. SQLite is
  opened in WAL mode so readers don't block. The connection pool is
  pinned to one connection: a single writer is all SQLite allows
  anyway, and it keeps ":memory:" databases on one connection.

AMOUNTS:
  Stored as decimal TEXT, never floats. Increment is a read-modify-
  write under the store lock, matching decimal addition in Go rather
  than trusting SQL float arithmetic.

USAGE:
  store, err := sqlite.New("./data/autosum.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  svc := accounting.NewService(store)
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/autosum/shift-engine/accounting"
)

// Store implements accounting.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Ledger (append-only, source of truth)
	CREATE TABLE IF NOT EXISTS ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		recorded_at TEXT NOT NULL,
		business_date TEXT NOT NULL,
		shift TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_recorded_at
		ON ledger(recorded_at);

	-- Rebuild groups by this exact tuple
	CREATE INDEX IF NOT EXISTS idx_ledger_group
		ON ledger(account_id, business_date, shift, currency);

	-- Running totals (derived view, unique per key)
	CREATE TABLE IF NOT EXISTS aggregates (
		account_id INTEGER NOT NULL,
		business_date TEXT NOT NULL,
		shift TEXT NOT NULL,
		currency TEXT NOT NULL,
		total TEXT NOT NULL,
		tx_count INTEGER NOT NULL,
		PRIMARY KEY (account_id, business_date, shift, currency)
	);

	-- Closed-out totals (append-only; one batch of rows per close event)
	CREATE TABLE IF NOT EXISTS archive (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		business_date TEXT NOT NULL,
		shift TEXT NOT NULL,
		currency TEXT NOT NULL,
		total TEXT NOT NULL,
		tx_count INTEGER NOT NULL,
		archived_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_archive_account_date
		ON archive(account_id, business_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every statement can
// run inside or outside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendRecord appends one record to the ledger.
func (s *Store) AppendRecord(ctx context.Context, rec accounting.Record) (accounting.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecord(ctx, s.db, rec)
}

func (s *Store) appendRecord(ctx context.Context, db dbtx, rec accounting.Record) (accounting.RecordID, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO ledger (account_id, recorded_at, business_date, shift, currency, amount)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64(rec.Account),
		rec.RecordedAt.Format(time.RFC3339),
		rec.BusinessDate.String(),
		string(rec.Shift),
		string(rec.Currency),
		rec.Amount.String(),
	)
	if err != nil {
		return 0, accounting.WrapStorage("append ledger record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, accounting.WrapStorage("ledger record id", err)
	}
	return accounting.RecordID(id), nil
}

// ScanRecords returns the full ledger ordered by timestamp.
func (s *Store) ScanRecords(ctx context.Context) ([]accounting.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanRecords(ctx, s.db)
}

func (s *Store) scanRecords(ctx context.Context, db dbtx) ([]accounting.Record, error) {
	return s.queryRecords(ctx, db, `
		SELECT id, account_id, recorded_at, business_date, shift, currency, amount
		FROM ledger
		ORDER BY recorded_at ASC, id ASC`)
}

// RecentRecords returns the newest records first.
func (s *Store) RecentRecords(ctx context.Context, limit int) ([]accounting.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryRecords(ctx, s.db, `
		SELECT id, account_id, recorded_at, business_date, shift, currency, amount
		FROM ledger
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
}

func (s *Store) queryRecords(ctx context.Context, db dbtx, query string, args ...any) ([]accounting.Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, accounting.WrapStorage("query ledger", err)
	}
	defer rows.Close()

	var records []accounting.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, accounting.WrapStorage("iterate ledger", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (accounting.Record, error) {
	var (
		rec          accounting.Record
		id, account  int64
		recordedAt   string
		businessDate string
		shift        string
		currency     string
		amount       string
	)

	if err := rows.Scan(&id, &account, &recordedAt, &businessDate, &shift, &currency, &amount); err != nil {
		return rec, accounting.WrapStorage("scan ledger row", err)
	}

	rec.ID = accounting.RecordID(id)
	rec.Account = accounting.AccountID(account)
	rec.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
	rec.BusinessDate, _ = accounting.ParseDate(businessDate)
	rec.Shift = accounting.Shift(shift)
	rec.Currency = accounting.Currency(currency)
	rec.Amount = mustDecimal(amount)
	return rec, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

// IncrementAggregate adds amount to the row at key, creating it when
// absent. Read-modify-write is safe here: all writers hold the store
// lock, and inside WithTx the statement runs on the same transaction.
func (s *Store) IncrementAggregate(ctx context.Context, key accounting.Key, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incrementAggregate(ctx, s.db, key, amount)
}

func (s *Store) incrementAggregate(ctx context.Context, db dbtx, key accounting.Key, amount decimal.Decimal) error {
	var (
		total string
		count int
	)
	err := db.QueryRowContext(ctx, `
		SELECT total, tx_count FROM aggregates
		WHERE account_id = ? AND business_date = ? AND shift = ? AND currency = ?`,
		int64(key.Account), key.BusinessDate.String(), string(key.Shift), string(key.Currency),
	).Scan(&total, &count)

	switch {
	case err == sql.ErrNoRows:
		_, err = db.ExecContext(ctx, `
			INSERT INTO aggregates (account_id, business_date, shift, currency, total, tx_count)
			VALUES (?, ?, ?, ?, ?, 1)`,
			int64(key.Account), key.BusinessDate.String(), string(key.Shift), string(key.Currency),
			amount.String(),
		)
		return accounting.WrapStorage("insert aggregate", err)
	case err != nil:
		return accounting.WrapStorage("read aggregate", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE aggregates SET total = ?, tx_count = ?
		WHERE account_id = ? AND business_date = ? AND shift = ? AND currency = ?`,
		mustDecimal(total).Add(amount).String(), count+1,
		int64(key.Account), key.BusinessDate.String(), string(key.Shift), string(key.Currency),
	)
	return accounting.WrapStorage("update aggregate", err)
}

// AggregateRows returns the rows for (account, date), one shift only
// when shift is non-nil.
func (s *Store) AggregateRows(ctx context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) ([]accounting.AggregateRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregateRows(ctx, s.db, account, date, shift)
}

func (s *Store) aggregateRows(ctx context.Context, db dbtx, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) ([]accounting.AggregateRow, error) {
	query := `
		SELECT account_id, business_date, shift, currency, total, tx_count
		FROM aggregates
		WHERE account_id = ? AND business_date = ?`
	args := []any{int64(account), date.String()}
	if shift != nil {
		query += ` AND shift = ?`
		args = append(args, string(*shift))
	}
	query += ` ORDER BY shift ASC, currency ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, accounting.WrapStorage("query aggregates", err)
	}
	defer rows.Close()

	var out []accounting.AggregateRow
	for rows.Next() {
		row, err := scanAggregateRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, accounting.WrapStorage("iterate aggregates", err)
	}
	return out, nil
}

func scanAggregateRow(rows *sql.Rows) (accounting.AggregateRow, error) {
	var (
		row          accounting.AggregateRow
		account      int64
		businessDate string
		shift        string
		currency     string
		total        string
		count        int
	)
	if err := rows.Scan(&account, &businessDate, &shift, &currency, &total, &count); err != nil {
		return row, accounting.WrapStorage("scan aggregate row", err)
	}
	date, _ := accounting.ParseDate(businessDate)
	row.Key = accounting.Key{
		Account:      accounting.AccountID(account),
		BusinessDate: date,
		Shift:        accounting.Shift(shift),
		Currency:     accounting.Currency(currency),
	}
	row.Tally = accounting.Tally{Total: mustDecimal(total), Count: count}
	return row, nil
}

// ZeroAggregates zeroes the matching rows in place; rows are kept.
func (s *Store) ZeroAggregates(ctx context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zeroAggregates(ctx, s.db, account, date, shift)
}

func (s *Store) zeroAggregates(ctx context.Context, db dbtx, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) error {
	query := `UPDATE aggregates SET total = '0', tx_count = 0 WHERE account_id = ? AND business_date = ?`
	args := []any{int64(account), date.String()}
	if shift != nil {
		query += ` AND shift = ?`
		args = append(args, string(*shift))
	}
	_, err := db.ExecContext(ctx, query, args...)
	return accounting.WrapStorage("zero aggregates", err)
}

// ReplaceAggregates wipes the table and writes the given rows.
func (s *Store) ReplaceAggregates(ctx context.Context, rows []accounting.AggregateRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceAggregates(ctx, s.db, rows)
}

func (s *Store) replaceAggregates(ctx context.Context, db dbtx, rows []accounting.AggregateRow) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM aggregates`); err != nil {
		return accounting.WrapStorage("clear aggregates", err)
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO aggregates (account_id, business_date, shift, currency, total, tx_count)
			VALUES (?, ?, ?, ?, ?, ?)`,
			int64(r.Key.Account), r.Key.BusinessDate.String(), string(r.Key.Shift), string(r.Key.Currency),
			r.Tally.Total.String(), r.Tally.Count,
		)
		if err != nil {
			return accounting.WrapStorage("write aggregate", err)
		}
	}
	return nil
}

// =============================================================================
// ARCHIVE
// =============================================================================

// AppendArchive appends closed-out rows. Append-only, like the ledger.
func (s *Store) AppendArchive(ctx context.Context, rows []accounting.ArchiveRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendArchive(ctx, s.db, rows)
}

func (s *Store) appendArchive(ctx context.Context, db dbtx, rows []accounting.ArchiveRow) error {
	for _, r := range rows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO archive (account_id, business_date, shift, currency, total, tx_count, archived_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(r.Key.Account), r.Key.BusinessDate.String(), string(r.Key.Shift), string(r.Key.Currency),
			r.Tally.Total.String(), r.Tally.Count,
			r.ArchivedAt.Format(time.RFC3339),
		)
		if err != nil {
			return accounting.WrapStorage("append archive row", err)
		}
	}
	return nil
}

// ArchiveRows returns every archive row for (account, date).
func (s *Store) ArchiveRows(ctx context.Context, account accounting.AccountID, date accounting.Date) ([]accounting.ArchiveRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archiveRows(ctx, s.db, account, date)
}

func (s *Store) archiveRows(ctx context.Context, db dbtx, account accounting.AccountID, date accounting.Date) ([]accounting.ArchiveRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT account_id, business_date, shift, currency, total, tx_count, archived_at
		FROM archive
		WHERE account_id = ? AND business_date = ?
		ORDER BY id ASC`,
		int64(account), date.String(),
	)
	if err != nil {
		return nil, accounting.WrapStorage("query archive", err)
	}
	defer rows.Close()

	var out []accounting.ArchiveRow
	for rows.Next() {
		var (
			row          accounting.ArchiveRow
			acct         int64
			businessDate string
			shift        string
			currency     string
			total        string
			count        int
			archivedAt   string
		)
		if err := rows.Scan(&acct, &businessDate, &shift, &currency, &total, &count, &archivedAt); err != nil {
			return nil, accounting.WrapStorage("scan archive row", err)
		}
		date, _ := accounting.ParseDate(businessDate)
		row.Key = accounting.Key{
			Account:      accounting.AccountID(acct),
			BusinessDate: date,
			Shift:        accounting.Shift(shift),
			Currency:     accounting.Currency(currency),
		}
		row.Tally = accounting.Tally{Total: mustDecimal(total), Count: count}
		row.ArchivedAt, _ = time.Parse(time.RFC3339, archivedAt)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, accounting.WrapStorage("iterate archive", err)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within one database transaction, holding the
// write lock for the duration. Rolls back on error.
func (s *Store) WithTx(ctx context.Context, fn func(accounting.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return accounting.WrapStorage("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return accounting.WrapStorage("commit transaction", err)
	}
	return nil
}

// txStore routes store calls to the parent's statement helpers on the
// open transaction. It must not touch the parent's mutex: WithTx
// already holds it.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (t *txStore) AppendRecord(ctx context.Context, rec accounting.Record) (accounting.RecordID, error) {
	return t.parent.appendRecord(ctx, t.tx, rec)
}

func (t *txStore) ScanRecords(ctx context.Context) ([]accounting.Record, error) {
	return t.parent.scanRecords(ctx, t.tx)
}

func (t *txStore) RecentRecords(ctx context.Context, limit int) ([]accounting.Record, error) {
	return t.parent.queryRecords(ctx, t.tx, `
		SELECT id, account_id, recorded_at, business_date, shift, currency, amount
		FROM ledger
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
}

func (t *txStore) IncrementAggregate(ctx context.Context, key accounting.Key, amount decimal.Decimal) error {
	return t.parent.incrementAggregate(ctx, t.tx, key, amount)
}

func (t *txStore) AggregateRows(ctx context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) ([]accounting.AggregateRow, error) {
	return t.parent.aggregateRows(ctx, t.tx, account, date, shift)
}

func (t *txStore) ZeroAggregates(ctx context.Context, account accounting.AccountID, date accounting.Date, shift *accounting.Shift) error {
	return t.parent.zeroAggregates(ctx, t.tx, account, date, shift)
}

func (t *txStore) ReplaceAggregates(ctx context.Context, rows []accounting.AggregateRow) error {
	return t.parent.replaceAggregates(ctx, t.tx, rows)
}

func (t *txStore) AppendArchive(ctx context.Context, rows []accounting.ArchiveRow) error {
	return t.parent.appendArchive(ctx, t.tx, rows)
}

func (t *txStore) ArchiveRows(ctx context.Context, account accounting.AccountID, date accounting.Date) ([]accounting.ArchiveRow, error) {
	return t.parent.archiveRows(ctx, t.tx, account, date)
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
