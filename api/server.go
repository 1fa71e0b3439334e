/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Structured request logging (zap)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from configured origins

ROUTE GROUPS:
  /api/agents/*         Agent hierarchy
  /api/plans/{kind}     Plan catalogs
  /api/customers/*      Investments, schedules, settlement
  /api/obligations/*    Customer payouts
  /api/company-investments/quote  Interest schedule of a company booking
  /api/commissions/*    Agent commissions
  /api/rd/*             Recurring deposits
  /api/grants/*         Gift and bonus grants
  /api/admin/*          Ticks, deactivation, cleanup, reset
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
		})

		r.Route("/plans/{kind}", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Post("/", h.DefinePlan)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Post("/", h.CreateCustomer)
			r.Get("/{id}", h.GetCustomer)
			r.Post("/{id}/approve", h.ApproveCustomer)
			r.Post("/{id}/reject", h.RejectCustomer)
			r.Get("/{id}/obligations", h.ListObligations)
			r.Get("/{id}/settlement", h.GetSettlement)
		})

		r.Post("/obligations/{id}/pay", h.PayObligation)
		r.Post("/company-investments/quote", h.QuoteCompanyInvestment)

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Post("/{id}/pay", h.PayCommission)
		})

		r.Route("/rd", func(r chi.Router) {
			r.Post("/customers", h.CreateRDCustomer)
			r.Get("/customers/{id}", h.GetRDCustomer)
			r.Post("/customers/{id}/approve", h.ApproveRDCustomer)
			r.Post("/customers/{id}/reject", h.RejectRDCustomer)
			r.Get("/customers/{id}/installments", h.ListInstallments)
			r.Post("/installments/{id}/pay", h.PayInstallment)
		})

		r.Route("/grants", func(r chi.Router) {
			r.Get("/", h.ListGrants)
			r.Post("/{id}/fulfil", h.FulfilGrant)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/tick", h.RunTick)
			r.Post("/deactivate", h.DeactivatePlans)
			r.Post("/cleanup", h.PurgeRejected)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request once the response is written.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
