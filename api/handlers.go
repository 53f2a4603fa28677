/*
handlers.go - HTTP API handlers for the shift accounting engine

PURPOSE:
  Exposes the accounting facade over REST. Handles HTTP parsing, JSON
  serialization, and delegates everything else to accounting.Service.

ENDPOINTS:
  Accounts:
    POST /api/accounts/{id}/records     Record amounts (structured or free text)
    GET  /api/accounts/{id}/totals      Running totals (?date=&shift=)
    GET  /api/accounts/{id}/totals.csv  Totals as CSV
    GET  /api/accounts/{id}/archive     Archived totals (?date=)
    POST /api/accounts/{id}/close       Close a shift
    POST /api/accounts/{id}/reset       Zero a business date's live totals

  Admin (static allow-list via X-Actor-ID):
    POST /api/admin/rebuild             Regenerate aggregates from the ledger
    GET  /api/admin/ledger              Newest ledger records (?limit=)

  Export:
    GET  /api/export/ledger.csv         Full ledger as CSV

ERROR HANDLING:
  - 400: bad input (unknown currency/shift, malformed date, no amounts)
  - 403: actor not on the admin allow-list
  - 500: storage failure
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/autosum/shift-engine/accounting"
	"github.com/autosum/shift-engine/export"
	"github.com/autosum/shift-engine/parse"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds the HTTP layer's dependencies.
type Handler struct {
	Service *accounting.Service
	IsAdmin func(int64) bool
	Log     *slog.Logger
}

// NewHandler creates a Handler. isAdmin may be nil, which denies every
// admin request.
func NewHandler(svc *accounting.Service, isAdmin func(int64) bool, log *slog.Logger) *Handler {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{Service: svc, IsAdmin: isAdmin, Log: log}
}

// =============================================================================
// RECORD
// =============================================================================

// CreateRecord records one or more amounts for an account. A request
// carries either a structured currency+amount pair or a free-form text
// message that is scanned for amounts.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}

	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	at := h.Service.Now()
	if req.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timestamp", err)
			return
		}
		at = t
	}

	entries, err := requestEntries(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := r.Context()
	var written []RecordDTO
	for _, e := range entries {
		id, err := h.Service.Record(ctx, account, e.Currency, e.Amount, at)
		if err != nil {
			h.writeServiceError(w, r, "record amount", err)
			return
		}
		shift, date := h.Service.Classify(at)
		written = append(written, recordDTO(accounting.Record{
			ID:           id,
			Account:      account,
			RecordedAt:   at,
			BusinessDate: date,
			Shift:        shift,
			Currency:     e.Currency,
			Amount:       e.Amount,
		}))
	}

	shift, date := h.Service.Classify(at)
	totals, err := h.Service.Totals(ctx, account, date, &shift)
	if err != nil {
		h.writeServiceError(w, r, "read shift totals", err)
		return
	}

	h.Log.InfoContext(ctx, "amounts recorded",
		"account", int64(account),
		"records", len(written),
		"business_date", date.String(),
		"shift", string(shift))

	writeJSON(w, http.StatusCreated, RecordResponse{
		Records:      written,
		BusinessDate: date.String(),
		Shift:        string(shift),
		ShiftTotals:  totalsDTO(totals),
	})
}

func requestEntries(req RecordRequest) ([]parse.Entry, error) {
	if req.Text != "" {
		entries := parse.Amounts(req.Text)
		if len(entries) == 0 {
			return nil, errors.New("no amounts found in text")
		}
		return entries, nil
	}

	if req.Currency == "" || req.Amount == "" {
		return nil, errors.New("either text or currency+amount is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, errors.New("invalid amount: " + req.Amount)
	}
	return []parse.Entry{{Amount: amount, Currency: accounting.Currency(req.Currency)}}, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// GetTotals returns running totals for a business date, optionally one
// shift. Defaults to the current business date.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}
	date, shift, ok := h.dateShiftParams(w, r)
	if !ok {
		return
	}

	totals, err := h.Service.Totals(r.Context(), account, date, shift)
	if err != nil {
		h.writeServiceError(w, r, "query totals", err)
		return
	}

	resp := TotalsResponse{BusinessDate: date.String(), Totals: totalsDTO(totals)}
	if shift != nil {
		resp.Shift = string(*shift)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTotalsCSV streams the same totals as CSV.
func (h *Handler) GetTotalsCSV(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}
	date, shift, ok := h.dateShiftParams(w, r)
	if !ok {
		return
	}

	totals, err := h.Service.Totals(r.Context(), account, date, shift)
	if err != nil {
		h.writeServiceError(w, r, "query totals", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="totals_`+date.String()+`.csv"`)
	if err := export.WriteTotalsCSV(w, date, totals); err != nil {
		h.Log.ErrorContext(r.Context(), "totals csv write failed", "error", err)
	}
}

// GetArchive returns the archived (closed-out) totals for a business date.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	totals, err := h.Service.ArchivedTotals(r.Context(), account, date)
	if err != nil {
		h.writeServiceError(w, r, "query archive", err)
		return
	}
	writeJSON(w, http.StatusOK, TotalsResponse{BusinessDate: date.String(), Totals: totalsDTO(totals)})
}

// =============================================================================
// CLOSE / RESET
// =============================================================================

// CloseShift archives a shift's totals and zeroes the live rows.
// Defaults to the shift and business date of "now".
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}

	var req CloseShiftRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	nowShift, nowDate := h.Service.Classify(h.Service.Now())
	date, shift := nowDate, nowShift
	if req.Date != "" {
		d, err := accounting.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		date = d
	}
	if req.Shift != "" {
		s, err := accounting.ParseShift(req.Shift)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid shift", err)
			return
		}
		shift = s
	}

	archived, err := h.Service.CloseShift(r.Context(), account, date, shift)
	if err != nil {
		h.writeServiceError(w, r, "close shift", err)
		return
	}

	h.Log.InfoContext(r.Context(), "shift closed",
		"account", int64(account),
		"business_date", date.String(),
		"shift", string(shift))

	writeJSON(w, http.StatusOK, CloseShiftResponse{
		BusinessDate: date.String(),
		Shift:        string(shift),
		Archived:     totalsDTO(archived),
	})
}

// Reset zeroes every live total for a business date. The ledger keeps
// the records; totals diverge until the next rebuild.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	account, ok := accountParam(w, r)
	if !ok {
		return
	}

	var req ResetRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	_, date := h.Service.Classify(h.Service.Now())
	if req.Date != "" {
		d, err := accounting.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return
		}
		date = d
	}

	if err := h.Service.Reset(r.Context(), account, date); err != nil {
		h.writeServiceError(w, r, "reset totals", err)
		return
	}

	h.Log.InfoContext(r.Context(), "totals reset",
		"account", int64(account),
		"business_date", date.String())

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN
// =============================================================================

// Rebuild regenerates every aggregate row from the ledger.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.Rebuild(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "rebuild aggregates", err)
		return
	}

	h.Log.InfoContext(r.Context(), "aggregates rebuilt", "groups", groups)
	writeJSON(w, http.StatusOK, RebuildResponse{Groups: groups})
}

// DumpLedger returns the newest ledger records.
func (h *Handler) DumpLedger(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	records, err := h.Service.RecentRecords(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, "dump ledger", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = recordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportLedgerCSV streams the full ledger as CSV, oldest first.
func (h *Handler) ExportLedgerCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.Ledger(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "export ledger", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := export.WriteLedgerCSV(w, records); err != nil {
		h.Log.ErrorContext(r.Context(), "ledger csv write failed", "error", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func accountParam(w http.ResponseWriter, r *http.Request) (accounting.AccountID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id", err)
		return 0, false
	}
	return accounting.AccountID(id), true
}

// dateParam reads ?date=, defaulting to the current business date.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (accounting.Date, bool) {
	if v := r.URL.Query().Get("date"); v != "" {
		date, err := accounting.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err)
			return accounting.Date{}, false
		}
		return date, true
	}
	_, date := h.Service.Classify(h.Service.Now())
	return date, true
}

// dateShiftParams reads ?date= and ?shift=; a missing shift means
// "all shifts".
func (h *Handler) dateShiftParams(w http.ResponseWriter, r *http.Request) (accounting.Date, *accounting.Shift, bool) {
	date, ok := h.dateParam(w, r)
	if !ok {
		return accounting.Date{}, nil, false
	}
	if v := r.URL.Query().Get("shift"); v != "" {
		shift, err := accounting.ParseShift(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid shift", err)
			return accounting.Date{}, nil, false
		}
		return date, &shift, true
	}
	return date, nil, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if accounting.IsClientError(err) {
		writeError(w, http.StatusBadRequest, op+" rejected", err)
		return
	}
	h.Log.ErrorContext(r.Context(), op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, op+" failed", err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
