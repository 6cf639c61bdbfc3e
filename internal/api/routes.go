package api

import (
	"github.com/alejandrogutier/claro-data-ai-sub003/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires the full route tree. Health stays outside the auth
// middleware; everything under /api requires at least the viewer role, and
// mutations require analyst.
func SetupRoutes(h *Handlers, health *HealthChecker, verifier *auth.Verifier,
	allowedOrigins []string) *chi.Mux {

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(verifier.Middleware(auth.RoleViewer))

		// Read surface.
		r.Get("/overview", h.MonitorOverview)
		r.Get("/content", h.ListContent)
		r.Get("/incidents", h.ListIncidents)
		r.Get("/incidents/{id}", h.GetIncident)
		r.Get("/reports/runs/{id}", h.GetReportRun)
		r.Get("/exports/{id}", h.GetExport)
		r.Get("/social/reconciliations", h.ListReconciliations)

		// Operational mutations.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAnalyst))
			r.Post("/ingestion/runs", h.TriggerIngestion)
			r.Post("/content/state", h.BulkContentState)
			r.Post("/content/{id}/override", h.SetOverride)
			r.Post("/incidents/{id}/status", h.UpdateIncidentStatus)
			r.Post("/incidents/{id}/notes", h.AddIncidentNote)
			r.Post("/reports/runs", h.CreateReportRun)
			r.Post("/exports", h.CreateExport)
		})
	})
	return r
}
