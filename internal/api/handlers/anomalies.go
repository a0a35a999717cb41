package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/anomaly"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
)

// AnomalyDetector produces a spending anomaly report for a user.
type AnomalyDetector interface {
	Detect(ctx context.Context, userID string, opts anomaly.Options) (*anomaly.Report, error)
}

// AnomaliesHandler handles anomaly detection endpoints.
type AnomaliesHandler struct {
	detector AnomalyDetector
	defaults anomaly.Options
	log      zerolog.Logger
}

// NewAnomaliesHandler creates a new anomalies handler.
func NewAnomaliesHandler(detector AnomalyDetector, defaults anomaly.Options, log zerolog.Logger) *AnomaliesHandler {
	return &AnomaliesHandler{
		detector: detector,
		defaults: defaults,
		log:      log,
	}
}

// GetAnomalies handles GET /api/statements/anomalies?days=&threshold=
func (h *AnomaliesHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	opts := h.defaults
	query := r.URL.Query()

	if daysStr := query.Get("days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		opts.LookbackDays = days
	}

	if thresholdStr := query.Get("threshold"); thresholdStr != "" {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		opts.ZScoreThreshold = threshold
	}

	report, err := h.detector.Detect(r.Context(), userID, opts)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to detect anomalies")
		middleware.WriteJSON(w, http.StatusInternalServerError, middleware.Response{
			Success: false,
			Message: "Failed to detect anomalies",
			Error:   err.Error(),
		})
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, "", report)
}
