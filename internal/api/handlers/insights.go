package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/insights"
)

// InsightsGenerator produces spending advice for a user.
type InsightsGenerator interface {
	Spending(ctx context.Context, userID string, tf insights.Timeframe) (*insights.SpendingReport, error)
	Budgets(ctx context.Context, userID string) (*insights.BudgetReport, error)
}

// InsightsHandler handles spending insight endpoints.
type InsightsHandler struct {
	generator InsightsGenerator
	log       zerolog.Logger
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(generator InsightsGenerator, log zerolog.Logger) *InsightsHandler {
	return &InsightsHandler{
		generator: generator,
		log:       log,
	}
}

// GetInsights handles GET /api/statements/insights?timeframe=
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	tf := insights.ParseTimeframe(r.URL.Query().Get("timeframe"))

	report, err := h.generator.Spending(r.Context(), userID, tf)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate spending insights")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate spending insights")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "", report)
}

// GetBudgetRecommendations handles GET /api/statements/budget-recommendations
func (h *InsightsHandler) GetBudgetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	report, err := h.generator.Budgets(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate budget recommendations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate budget recommendations")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "", report)
}
