package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/jobs"
	"github.com/emailpilot/emailpilot/internal/store"
)

// NewPollJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
// Clients poll this until status is completed or failed.
func NewPollJobHandler(tracker *jobs.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "Missing user")
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid job ID")
			return
		}

		job, err := tracker.Get(r.Context(), jobID, userID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "Job not found")
			case errors.Is(err, jobs.ErrForbidden):
				response.Error(w, http.StatusForbidden, "Job belongs to another user")
			default:
				response.Error(w, http.StatusInternalServerError, "Failed to fetch job")
			}
			return
		}

		response.JSON(w, job)
	}
}
