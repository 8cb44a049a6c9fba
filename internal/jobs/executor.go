package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/emailpilot/emailpilot/internal/klaviyo"
	"github.com/emailpilot/emailpilot/internal/llm"
	"github.com/emailpilot/emailpilot/internal/llm/schema"
	"github.com/emailpilot/emailpilot/internal/metrics"
	"github.com/emailpilot/emailpilot/internal/store"
	"github.com/emailpilot/emailpilot/pkg/models"
	"github.com/google/uuid"
)

const (
	// recentGoalLimit bounds how much goal history the retrieval stage pulls
	// into the prompt.
	recentGoalLimit = 5

	// valuesFetchConcurrency caps parallel campaign-values calls to Klaviyo.
	valuesFetchConcurrency = 4
)

// Executor runs workflow pipelines. Async jobs are dispatched onto their own
// goroutine and report progress through the Tracker; the individual stages
// are also exposed directly for the synchronous single-stage API path.
type Executor struct {
	tracker    *Tracker
	store      store.Store
	klaviyo    klaviyo.Client
	provider   models.LLMProvider
	genTimeout time.Duration
	logger     *slog.Logger
}

func NewExecutor(tracker *Tracker, s store.Store, kc klaviyo.Client, provider models.LLMProvider, genTimeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		tracker:    tracker,
		store:      s,
		klaviyo:    kc,
		provider:   provider,
		genTimeout: genTimeout,
		logger:     logger,
	}
}

// Dispatch starts the pipeline for a queued job in the background and
// returns immediately. The caller polls the tracker for progress.
func (e *Executor) Dispatch(job *models.Job) {
	go e.run(job)
}

func (e *Executor) run(job *models.Job) {
	// Detached from the request context: the job outlives the HTTP request
	// that created it.
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("workflow panicked", "job_id", job.ID, "panic", r)
			e.fail(ctx, job.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	e.logger.Info("workflow started",
		"job_id", job.ID,
		"type", job.Type,
		"client", job.ClientName,
	)

	var (
		results json.RawMessage
		err     error
	)
	switch job.Type {
	case models.JobTypeGoals:
		results, err = e.runGoals(ctx, job)
	default:
		results, err = e.runCalendar(ctx, job)
	}
	if err != nil {
		e.logger.Error("workflow failed", "job_id", job.ID, "error", err)
		e.fail(ctx, job.ID, err.Error())
		return
	}

	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusCompleted, WithResults(results)); err != nil {
		e.logger.Error("failed to complete job", "job_id", job.ID, "error", err)
		return
	}
	e.logger.Info("workflow completed", "job_id", job.ID)
}

// fail moves the job to failed, recording the error string as job data so
// the client sees it on the next poll.
func (e *Executor) fail(ctx context.Context, jobID uuid.UUID, msg string) {
	if _, err := e.tracker.Transition(ctx, jobID, models.JobStatusFailed, WithError(msg)); err != nil {
		e.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}

// runCalendar executes the three-stage calendar pipeline:
// retrieval, metrics collection, generation.
func (e *Executor) runCalendar(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusRunning, WithStage(1)); err != nil {
		return nil, err
	}
	clientCtx, err := e.Retrieve(ctx, job.UserID, job.ClientName)
	if err != nil {
		return nil, fmt.Errorf("retrieval stage: %w", err)
	}

	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusRunning, WithStage(2)); err != nil {
		return nil, err
	}
	summary, err := e.CollectMetrics(ctx, job.StartDate, job.EndDate)
	if err != nil {
		return nil, fmt.Errorf("metrics stage: %w", err)
	}

	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusRunning, WithStage(3)); err != nil {
		return nil, err
	}
	calendar, err := e.GenerateCalendar(ctx, models.CalendarRequest{
		ClientName: job.ClientName,
		StartDate:  job.StartDate,
		EndDate:    job.EndDate,
		PromptName: job.PromptName,
		Context:    clientCtx,
		Metrics:    summary,
	})
	if err != nil {
		return nil, fmt.Errorf("generation stage: %w", err)
	}

	return calendar, nil
}

// runGoals executes the two-stage goals pipeline: combined retrieval and
// metrics collection, then generation. The generated goal set is persisted
// before the job completes.
func (e *Executor) runGoals(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusRunning, WithStage(1)); err != nil {
		return nil, err
	}
	clientCtx, err := e.Retrieve(ctx, job.UserID, job.ClientName)
	if err != nil {
		return nil, fmt.Errorf("retrieval stage: %w", err)
	}
	summary, err := e.CollectMetrics(ctx, job.StartDate, job.EndDate)
	if err != nil {
		return nil, fmt.Errorf("metrics stage: %w", err)
	}

	if _, err := e.tracker.Transition(ctx, job.ID, models.JobStatusRunning, WithStage(2)); err != nil {
		return nil, err
	}
	goals, err := e.GenerateGoals(ctx, models.GoalsRequest{
		ClientName: job.ClientName,
		StartDate:  job.StartDate,
		EndDate:    job.EndDate,
		Context:    clientCtx,
		Metrics:    summary,
	})
	if err != nil {
		return nil, fmt.Errorf("generation stage: %w", err)
	}

	jobID := job.ID
	gs := &models.GoalSet{
		ID:         uuid.New(),
		UserID:     job.UserID,
		JobID:      &jobID,
		ClientName: job.ClientName,
		StartDate:  job.StartDate,
		EndDate:    job.EndDate,
		Goals:      goals,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateGoalSet(ctx, gs); err != nil {
		return nil, fmt.Errorf("persisting goal set: %w", err)
	}

	return goals, nil
}

// Retrieve is the retrieval stage: it loads the client profile and recent
// goal history for prompt context. Unregistered clients are not an error;
// generation proceeds with a bare profile.
func (e *Executor) Retrieve(ctx context.Context, userID uuid.UUID, clientName string) (models.ClientContext, error) {
	clientCtx := models.ClientContext{
		Client:      models.Client{Name: clientName},
		RecentGoals: []models.GoalSet{},
	}

	client, err := e.store.GetClientByName(ctx, userID, clientName)
	switch {
	case err == nil:
		clientCtx.Client = *client
	case errors.Is(err, store.ErrNotFound):
		// keep the bare profile
	default:
		return models.ClientContext{}, fmt.Errorf("loading client: %w", err)
	}

	goalSets, err := e.store.ListGoalSets(ctx, userID, clientName, recentGoalLimit)
	if err != nil {
		return models.ClientContext{}, fmt.Errorf("loading goal history: %w", err)
	}
	for _, gs := range goalSets {
		clientCtx.RecentGoals = append(clientCtx.RecentGoals, *gs)
	}

	return clientCtx, nil
}

// CollectMetrics is the metrics stage: it lists email campaigns in the date
// window, fetches per-campaign performance numbers concurrently, and rolls
// them up into a summary.
func (e *Executor) CollectMetrics(ctx context.Context, startDate, endDate string) (models.MetricSummary, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return models.MetricSummary{}, fmt.Errorf("parsing start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return models.MetricSummary{}, fmt.Errorf("parsing end date: %w", err)
	}

	campaigns, err := e.klaviyo.Campaigns(ctx, klaviyo.CampaignsRequest{
		Channel: "email",
		Start:   start,
		End:     end,
	})
	if err != nil {
		return models.MetricSummary{}, fmt.Errorf("listing campaigns: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(valuesFetchConcurrency)
	for i := range campaigns {
		g.Go(func() error {
			values, err := e.klaviyo.CampaignValues(gctx, campaigns[i].CampaignID)
			if err != nil {
				return fmt.Errorf("campaign %s values: %w", campaigns[i].CampaignID, err)
			}
			campaigns[i].Recipients = values.Recipients
			campaigns[i].OpenRate = values.OpenRate
			campaigns[i].ClickRate = values.ClickRate
			campaigns[i].Revenue = values.Revenue
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MetricSummary{}, err
	}

	return metrics.Summarize(campaigns), nil
}

// GenerateCalendar is the generation stage for calendar workflows. The
// provider call runs under the configured generation timeout and the output
// must pass calendar schema validation.
func (e *Executor) GenerateCalendar(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	raw, err := e.provider.GenerateCalendar(genCtx, req)
	if err != nil {
		return nil, e.classifyGenerationError(err, genCtx)
	}
	if err := schema.ValidateCalendar(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}
	return raw, nil
}

// GenerateGoals is the generation stage for goal workflows.
func (e *Executor) GenerateGoals(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	raw, err := e.provider.GenerateGoals(genCtx, req)
	if err != nil {
		return nil, e.classifyGenerationError(err, genCtx)
	}
	if err := schema.ValidateGoals(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidResponse, err)
	}
	return raw, nil
}

func (e *Executor) classifyGenerationError(err error, genCtx context.Context) error {
	if errors.Is(err, llm.ErrGenerationTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: provider %s exceeded %s", llm.ErrGenerationTimeout, e.provider.Name(), e.genTimeout)
	}
	return fmt.Errorf("%w: %v", llm.ErrProviderUnavailable, err)
}
