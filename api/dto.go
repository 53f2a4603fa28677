/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the HTTP API. These decouple the internal domain
  model from the wire contract. Amounts cross the wire as decimal
  strings, never floats.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers
*/
package api

import (
	"time"

	"github.com/autosum/shift-engine/accounting"
)

// =============================================================================
// TOTALS
// =============================================================================

// TallyDTO is one currency's total and contributing record count.
type TallyDTO struct {
	Total string `json:"total"`
	Count int    `json:"count"`
}

// TotalsDTO maps currency code to its tally. Every supported currency
// is present, zero-filled when nothing was recorded.
type TotalsDTO map[string]TallyDTO

func totalsDTO(t accounting.Totals) TotalsDTO {
	out := make(TotalsDTO, len(t))
	for c, tally := range t {
		out[string(c)] = TallyDTO{Total: tally.Total.String(), Count: tally.Count}
	}
	return out
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordRequest reports one or more amounts. Either a structured
// currency+amount pair or a free-form text message (parsed for
// amounts) must be present. Timestamp is optional RFC 3339; the server
// clock is used when absent.
type RecordRequest struct {
	Currency  string `json:"currency,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RecordDTO is one ledger record in API responses.
type RecordDTO struct {
	ID           int64  `json:"id"`
	Account      int64  `json:"account_id"`
	RecordedAt   string `json:"recorded_at"`
	BusinessDate string `json:"business_date"`
	Shift        string `json:"shift"`
	Currency     string `json:"currency"`
	Amount       string `json:"amount"`
}

func recordDTO(rec accounting.Record) RecordDTO {
	return RecordDTO{
		ID:           int64(rec.ID),
		Account:      int64(rec.Account),
		RecordedAt:   rec.RecordedAt.Format(time.RFC3339),
		BusinessDate: rec.BusinessDate.String(),
		Shift:        string(rec.Shift),
		Currency:     string(rec.Currency),
		Amount:       rec.Amount.String(),
	}
}

// RecordResponse confirms the written records and echoes the running
// totals for the shift they landed in.
type RecordResponse struct {
	Records      []RecordDTO `json:"records"`
	BusinessDate string      `json:"business_date"`
	Shift        string      `json:"shift"`
	ShiftTotals  TotalsDTO   `json:"shift_totals"`
}

// TotalsResponse wraps a totals query result.
type TotalsResponse struct {
	BusinessDate string    `json:"business_date"`
	Shift        string    `json:"shift,omitempty"`
	Totals       TotalsDTO `json:"totals"`
}

// =============================================================================
// CLOSE / RESET / REBUILD
// =============================================================================

// CloseShiftRequest closes a shift. Date and shift default to the
// current classification when omitted.
type CloseShiftRequest struct {
	Date  string `json:"date,omitempty"`
	Shift string `json:"shift,omitempty"`
}

// CloseShiftResponse is the just-archived snapshot (all-zero when the
// close was a no-op).
type CloseShiftResponse struct {
	BusinessDate string    `json:"business_date"`
	Shift        string    `json:"shift"`
	Archived     TotalsDTO `json:"archived"`
}

// ResetRequest zeroes a business date's live totals.
type ResetRequest struct {
	Date string `json:"date,omitempty"`
}

// RebuildResponse reports how many aggregate groups were regenerated.
type RebuildResponse struct {
	Groups int `json:"groups"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
