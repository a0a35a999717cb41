// Package api assembles the HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/handlers"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Statements *handlers.StatementsHandler
	Anomalies  *handlers.AnomaliesHandler
	Insights   *handlers.InsightsHandler
	Jobs       *handlers.JobsHandler
}

// NewRouter builds the chi router with the middleware chain. Everything under
// /api requires an authenticated user.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Route("/statements", func(r chi.Router) {
			r.Post("/preview", h.Statements.Preview)
			r.Post("/import", h.Statements.Import)
			r.Post("/import-jobs", h.Statements.EnqueueImport)
			r.Get("/anomalies", h.Anomalies.GetAnomalies)
			r.Get("/insights", h.Insights.GetInsights)
			r.Get("/budget-recommendations", h.Insights.GetBudgetRecommendations)
		})

		r.Get("/jobs", h.Jobs.ListJobs)
		r.Get("/jobs/{id}", h.Jobs.GetJob)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}
