package handler

import (
	"encoding/json"
	"net/http"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/jobs"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// NewGenerateGoalsHandler returns the handler for POST /api/v1/goals/generate.
// Goal generation always runs as an async two-stage job.
func NewGenerateGoalsHandler(tracker *jobs.Tracker, exec *jobs.Executor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user")
			return
		}

		var req workflowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		req.Stage = StageFull
		if err := req.validate(); err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := tracker.Create(r.Context(), userID, models.JobTypeGoals, req.ClientName, req.StartDate, req.EndDate, req.PromptName)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to create job")
			return
		}
		exec.Dispatch(job)

		response.Accepted(w, dispatchResponse{
			JobID:   job.ID,
			Status:  job.Status,
			Message: "Goal generation started. Poll GET /api/v1/jobs/" + job.ID.String() + " for status.",
		})
	}
}
