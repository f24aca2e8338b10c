package handlers

import (
	"net/http"
	"time"

	"graphitti-backend/application/services"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"

	"go.uber.org/zap"
)

// AnalyticsHandler handles evolution analytics HTTP requests
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	logger    *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(analytics *services.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// GetTimeline handles GET /analytics/timeline?days=&granularity=&details=
func (h *AnalyticsHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days <= 0 || days > 365 {
		common.RespondAppError(w, errors.NewInvalidArgumentError("days must be between 1 and 365"))
		return
	}
	granularity := r.URL.Query().Get("granularity")
	includeDetails := r.URL.Query().Get("details") == "true"

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	timeline, err := h.analytics.GetEvolutionTimeline(r.Context(), start, end, granularity, includeDetails)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, timeline)
}

// GetHealth handles GET /analytics/health
func (h *AnalyticsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.analytics.GetGraphHealthMetrics(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, health)
}

// GetStatistics handles GET /analytics/statistics
func (h *AnalyticsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.GetStatistics(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, stats)
}
