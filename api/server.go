/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ADMIN ROUTES:
  /api/admin/* requires an X-Actor-ID header whose integer value is on
  the static allow-list. This is deliberately the only authentication
  in the system.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Post("/records", h.CreateRecord)
			r.Get("/totals", h.GetTotals)
			r.Get("/totals.csv", h.GetTotalsCSV)
			r.Get("/archive", h.GetArchive)
			r.Post("/close", h.CloseShift)
			r.Post("/reset", h.Reset)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/rebuild", h.Rebuild)
			r.Get("/ledger", h.DumpLedger)
		})

		r.Get("/export/ledger.csv", h.ExportLedgerCSV)
	})

	return r
}

// requireAdmin gates a route on the static admin allow-list.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
		if err != nil || !h.IsAdmin(actor) {
			writeError(w, http.StatusForbidden, "not allowed", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
