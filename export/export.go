/*
Package export renders accounting data as CSV for download.

Two reports:
  - the full ledger, oldest record first (the audit trail operators
    pull into a spreadsheet)
  - a per-currency totals summary for one business date

Both are plain CSV streams; the HTTP layer sets disposition headers.
*/
package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/autosum/shift-engine/accounting"
)

var ledgerHeader = []string{"id", "account_id", "recorded_at", "business_date", "shift", "currency", "amount"}

// WriteLedgerCSV writes every record as one CSV row, oldest first.
// Callers pass the result of Service.Ledger, which is already ordered
// by timestamp.
func WriteLedgerCSV(w io.Writer, records []accounting.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ledgerHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(int64(rec.ID), 10),
			strconv.FormatInt(int64(rec.Account), 10),
			rec.RecordedAt.Format(time.RFC3339),
			rec.BusinessDate.String(),
			string(rec.Shift),
			string(rec.Currency),
			rec.Amount.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var totalsHeader = []string{"business_date", "currency", "total", "count"}

// WriteTotalsCSV writes one row per currency, sorted by currency code
// so output is stable.
func WriteTotalsCSV(w io.Writer, date accounting.Date, totals accounting.Totals) error {
	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, string(c))
	}
	sort.Strings(currencies)

	cw := csv.NewWriter(w)
	if err := cw.Write(totalsHeader); err != nil {
		return err
	}
	for _, c := range currencies {
		t := totals[accounting.Currency(c)]
		row := []string{
			date.String(),
			c,
			t.Total.String(),
			strconv.Itoa(t.Count),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
