/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the grid frontend

ROUTE GROUPS:
  /api/sites                                   Site list
  /api/sites/{siteID}/ledger/{year}/{month}/*  Attendance grid
  /api/holidays/*                              Holiday calendar
  /api/scenarios/*                             Demo scenarios
  /metrics                                     Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.Sessions.Len()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/sites", h.ListSites)

		// Ledger routes
		r.Route("/sites/{siteID}/ledger/{year}/{month}", func(r chi.Router) {
			r.Get("/", h.GetLedger)
			r.Delete("/", h.CloseLedger)
			r.Post("/reload", h.ReloadLedger)
			r.Put("/cells", h.SetCell)
			r.Post("/fill", h.FillRange)
			r.Put("/workers/{workerID}/bonus", h.SetBonus)
			r.Post("/undo", h.Undo)
			r.Post("/redo", h.Redo)
			r.Post("/save", h.Save)
			r.Get("/dirty", h.DirtyCells)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
