package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the router. allowedOrigins feeds CORS; an empty list
// keeps the API same-origin only.
func SetupRoutes(h *Handlers, health *HealthChecker, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", health.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/ads", func(r chi.Router) {
			r.Get("/", h.ListAds)
			r.Get("/{id}", h.GetAd)
			r.Get("/{id}/snapshots", h.ListAdSnapshots)
			r.Get("/{id}/snapshots/{snapshotID}/body", h.GetSnapshotBody)
			r.Post("/{id}/divergence-check", h.RunDivergenceCheck)
		})

		r.Get("/advertisers", h.ListAdvertisers)
		r.Get("/domains", h.ListDomains)
		r.Get("/dashboard/stats", h.GetDashboardStats)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/{id}/read", h.MarkAlertRead)
			r.Delete("/{id}", h.DeleteAlert)
		})

		r.Post("/worker/run", h.TriggerWorkerRun)
	})

	return r
}
