/*
rebuild.go - Regenerating aggregates from the ledger

PURPOSE:
  The recovery path. Aggregates are a derived view; if a crash, a manual
  Reset, or any other divergence leaves them out of step with the
  ledger, Rebuild discards all of them and regenerates one row per
  (account, business date, shift, currency) group found in the ledger.

GUARANTEES:
  - Idempotent: running it twice back to back yields identical rows.
  - Exclusive: runs inside WithTx, so no increment can interleave with
    the discard-and-regenerate.
  - The archive is never touched.

  It runs automatically once at process start; after a mid-rebuild
  storage failure the aggregates are in an undefined partial state and
  the rebuild must be retried before the totals are trusted.
*/
package accounting

import "context"

// Rebuild replaces every aggregate row with groups derived from a full
// ledger scan. Returns the number of groups written.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	var groups int
	err := s.store.WithTx(ctx, func(st Store) error {
		records, err := st.ScanRecords(ctx)
		if err != nil {
			return err
		}

		// Group in first-seen order so repeated rebuilds write rows in
		// the same order for the same ledger.
		index := make(map[Key]int)
		rows := make([]AggregateRow, 0, len(index))
		for _, rec := range records {
			k := rec.GroupKey()
			i, ok := index[k]
			if !ok {
				i = len(rows)
				index[k] = i
				rows = append(rows, AggregateRow{Key: k})
			}
			rows[i].Tally = rows[i].Tally.Add(rec.Amount)
		}

		groups = len(rows)
		return st.ReplaceAggregates(ctx, rows)
	})
	if err != nil {
		return 0, err
	}
	return groups, nil
}
