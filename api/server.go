/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logging:    Structured request logging (zerolog)
  4. CORS:       Cross-origin requests for internal dashboards

ROUTE GROUPS:
  /api/classify           Rule classification
  /api/rules              Loaded rule set
  /api/compliance/*       Due dates, interest
  /api/self-invoices/*    Self-invoice issuance and lookup
  /api/ledger/*           Credit ledger balance, history, posting
  /api/reconciliation/*   Claim-vs-statement runs
  /api/utilization/*      Credit utilization

SECURITY NOTE:
  No authentication middleware. This service runs behind the internal
  gateway, which terminates auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/classify", h.Classify)
		r.Get("/rules", h.ListRules)

		r.Route("/compliance", func(r chi.Router) {
			r.Post("/due-date", h.GetDueDate)
			r.Post("/interest", h.ComputeInterest)
		})

		r.Route("/self-invoices", func(r chi.Router) {
			r.Post("/", h.IssueSelfInvoice)
			r.Post("/batch", h.IssueSelfInvoiceBatch)
			r.Get("/{sourceTxnID}", h.GetSelfInvoice)
		})

		r.Route("/ledger/{gstin}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/entries", h.GetEntries)
			r.Post("/entries", h.PostEntry)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", h.RunReconciliation)
			r.Get("/runs", h.ListReconciliationRuns)
		})

		r.Post("/utilization/allocate", h.AllocateCredit)
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
