package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/jobs"
	"github.com/emailpilot/emailpilot/internal/klaviyo"
	"github.com/emailpilot/emailpilot/internal/llm"
	"github.com/emailpilot/emailpilot/pkg/models"
	"github.com/google/uuid"
)

// Workflow stages accepted by POST /api/v1/workflow/run. "full" runs the
// whole pipeline asynchronously; the others run one stage synchronously.
const (
	StageFull     = "full"
	StageRAG      = "rag"
	StageMCP      = "mcp"
	StageGenerate = "generate"
)

type workflowRequest struct {
	ClientName string `json:"client_name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Stage      string `json:"stage"`
	PromptName string `json:"prompt_name"`
}

// validate checks the shared request fields and normalizes the stage.
func (req *workflowRequest) validate() error {
	if req.ClientName == "" {
		return errors.New("client_name is required")
	}
	if req.StartDate == "" {
		return errors.New("start_date is required")
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return errors.New("start_date must be a valid YYYY-MM-DD date")
	}
	if req.EndDate == "" {
		return errors.New("end_date is required")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return errors.New("end_date must be a valid YYYY-MM-DD date")
	}
	if end.Before(start) {
		return errors.New("end_date must not be before start_date")
	}

	if req.Stage == "" {
		req.Stage = StageFull
	}
	switch req.Stage {
	case StageFull, StageRAG, StageMCP, StageGenerate:
		return nil
	default:
		return fmt.Errorf("Invalid stage: %q", req.Stage)
	}
}

type dispatchResponse struct {
	JobID   uuid.UUID        `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

// NewWorkflowRunHandler returns the handler for POST /api/v1/workflow/run.
func NewWorkflowRunHandler(tracker *jobs.Tracker, exec *jobs.Executor) http.HandlerFunc {
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
		if err := req.validate(); err != nil {
			response.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		if req.Stage == StageFull {
			job, err := tracker.Create(r.Context(), userID, models.JobTypeCalendar, req.ClientName, req.StartDate, req.EndDate, req.PromptName)
			if err != nil {
				response.Error(w, http.StatusInternalServerError, "Failed to create job")
				return
			}
			exec.Dispatch(job)

			response.Accepted(w, dispatchResponse{
				JobID:   job.ID,
				Status:  job.Status,
				Message: "Workflow started. Poll GET /api/v1/jobs/" + job.ID.String() + " for status.",
			})
			return
		}

		runStage(w, r, exec, userID, req)
	}
}

// runStage executes a single pipeline stage synchronously and writes the
// stage output directly.
func runStage(w http.ResponseWriter, r *http.Request, exec *jobs.Executor, userID uuid.UUID, req workflowRequest) {
	ctx := r.Context()

	switch req.Stage {
	case StageRAG:
		clientCtx, err := exec.Retrieve(ctx, userID, req.ClientName)
		if err != nil {
			writeStageError(w, err)
			return
		}
		response.JSON(w, clientCtx)

	case StageMCP:
		summary, err := exec.CollectMetrics(ctx, req.StartDate, req.EndDate)
		if err != nil {
			writeStageError(w, err)
			return
		}
		response.JSON(w, summary)

	case StageGenerate:
		clientCtx, err := exec.Retrieve(ctx, userID, req.ClientName)
		if err != nil {
			writeStageError(w, err)
			return
		}
		summary, err := exec.CollectMetrics(ctx, req.StartDate, req.EndDate)
		if err != nil {
			writeStageError(w, err)
			return
		}
		calendar, err := exec.GenerateCalendar(ctx, models.CalendarRequest{
			ClientName: req.ClientName,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			PromptName: req.PromptName,
			Context:    clientCtx,
			Metrics:    summary,
		})
		if err != nil {
			writeStageError(w, err)
			return
		}
		response.JSON(w, json.RawMessage(calendar))
	}
}

// writeStageError maps synchronous stage failures to HTTP statuses.
func writeStageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llm.ErrGenerationTimeout):
		response.Error(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, llm.ErrProviderUnavailable),
		errors.Is(err, klaviyo.ErrKlaviyoUnreachable),
		errors.Is(err, klaviyo.ErrKlaviyoTimeout):
		response.Error(w, http.StatusBadGateway, err.Error())
	default:
		response.Error(w, http.StatusInternalServerError, err.Error())
	}
}
