package handler

import (
	"encoding/json"
	"net/http"
	"time"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/cache"
	"github.com/emailpilot/emailpilot/internal/jobs"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// metricsCacheTTL bounds staleness of the campaign metrics proxy. Klaviyo
// aggregates lag by hours anyway, so a short TTL costs nothing.
const metricsCacheTTL = 15 * time.Minute

// NewCampaignMetricsHandler returns the handler for GET /api/v1/metrics/campaigns.
// Summaries are cached in Redis per user and date window.
func NewCampaignMetricsHandler(exec *jobs.Executor, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user")
			return
		}

		startDate := r.URL.Query().Get("start_date")
		endDate := r.URL.Query().Get("end_date")
		if startDate == "" || endDate == "" {
			response.Error(w, http.StatusBadRequest, "start_date and end_date are required")
			return
		}
		if _, err := time.Parse("2006-01-02", startDate); err != nil {
			response.Error(w, http.StatusBadRequest, "start_date must be a valid YYYY-MM-DD date")
			return
		}
		if _, err := time.Parse("2006-01-02", endDate); err != nil {
			response.Error(w, http.StatusBadRequest, "end_date must be a valid YYYY-MM-DD date")
			return
		}

		key := cache.MetricsKey(userID, cache.HashFilter(startDate+":"+endDate))
		if cached, found, err := c.Get(r.Context(), key); err == nil && found {
			var summary models.MetricSummary
			if json.Unmarshal(cached, &summary) == nil {
				response.JSON(w, summary)
				return
			}
		}

		summary, err := exec.CollectMetrics(r.Context(), startDate, endDate)
		if err != nil {
			writeStageError(w, err)
			return
		}

		if payload, err := json.Marshal(summary); err == nil {
			// Cache failures are not the client's problem.
			_ = c.Set(r.Context(), key, payload, metricsCacheTTL)
		}

		response.JSON(w, summary)
	}
}
