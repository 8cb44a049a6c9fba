// Package jobs implements the workflow job lifecycle: the Tracker owns job
// state and its transitions, the Executor runs pipelines against it.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emailpilot/emailpilot/internal/store"
	"github.com/emailpilot/emailpilot/pkg/models"
)

var (
	// ErrForbidden means the job exists but belongs to a different user.
	ErrForbidden = errors.New("job belongs to another user")
	// ErrTerminalJob means the job is already completed or failed.
	ErrTerminalJob = errors.New("job is in a terminal state")
	// ErrInvalidTransition means the requested status change is not permitted
	// from the job's current status.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// transitions is the closed set of permitted status changes. Terminal states
// have no outgoing edges; running may re-enter running for stage advances.
var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusQueued:  {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusRunning, models.JobStatusCompleted, models.JobStatusFailed},
}

func transitionAllowed(from, to models.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Update carries the optional fields of a status transition.
type Update struct {
	Stage   *int
	Results json.RawMessage
	Error   *string
}

// UpdateOption mutates an Update.
type UpdateOption func(*Update)

// WithStage records which pipeline stage the job is entering.
func WithStage(stage int) UpdateOption {
	return func(u *Update) {
		u.Stage = &stage
	}
}

// WithResults attaches the terminal result payload.
func WithResults(results json.RawMessage) UpdateOption {
	return func(u *Update) {
		u.Results = results
	}
}

// WithError attaches the terminal error string.
func WithError(msg string) UpdateOption {
	return func(u *Update) {
		u.Error = &msg
	}
}

// Tracker owns job lifecycle state. Postgres is the source of truth; a
// process-local map fronts it so polling does not hit the database on the
// hot path. Every write goes to the store first and the map second, so a
// restarted process rebuilds correct state from the store on demand.
type Tracker struct {
	store store.Store

	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

func NewTracker(s store.Store) *Tracker {
	return &Tracker{
		store: s,
		jobs:  make(map[uuid.UUID]*models.Job),
	}
}

// Create registers a new job in the queued state and returns it.
func (t *Tracker) Create(ctx context.Context, userID uuid.UUID, jobType models.JobType, clientName, startDate, endDate, promptName string) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.New(),
		UserID:     userID,
		Type:       jobType,
		Status:     models.JobStatusQueued,
		ClientName: clientName,
		StartDate:  startDate,
		EndDate:    endDate,
		PromptName: promptName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := t.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	t.mu.Lock()
	t.jobs[job.ID] = cloneJob(job)
	t.mu.Unlock()

	return cloneJob(job), nil
}

// Transition moves a job to the next status, enforcing the transition table.
// Transitions out of a terminal state return ErrTerminalJob; other
// disallowed changes return ErrInvalidTransition. The store write happens
// under the tracker lock so concurrent transitions on the same job serialize.
func (t *Tracker) Transition(ctx context.Context, id uuid.UUID, next models.JobStatus, opts ...UpdateOption) (*models.Job, error) {
	var upd Update
	for _, opt := range opts {
		opt(&upd)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.lookupLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, fmt.Errorf("%w: job %s is %s", ErrTerminalJob, id, job.Status)
	}
	if !transitionAllowed(job.Status, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}

	storeOpts := make([]store.JobUpdateOption, 0, 3)
	if upd.Stage != nil {
		storeOpts = append(storeOpts, store.WithStage(*upd.Stage))
	}
	if upd.Results != nil {
		storeOpts = append(storeOpts, store.WithResults(upd.Results))
	}
	if upd.Error != nil {
		storeOpts = append(storeOpts, store.WithErrorMessage(*upd.Error))
	}

	if err := t.store.UpdateJobStatus(ctx, id, next, storeOpts...); err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}

	job.Status = next
	job.UpdatedAt = time.Now().UTC()
	if next.Terminal() {
		job.CurrentStage = nil
	} else if upd.Stage != nil {
		stage := *upd.Stage
		job.CurrentStage = &stage
	}
	if upd.Results != nil {
		job.Results = upd.Results
	}
	if upd.Error != nil {
		msg := *upd.Error
		job.Error = &msg
	}

	return cloneJob(job), nil
}

// Get returns the job with the given ID for polling. Jobs owned by another
// user return ErrForbidden; unknown IDs return store.ErrNotFound.
func (t *Tracker) Get(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error) {
	t.mu.RLock()
	job, ok := t.jobs[id]
	if ok {
		job = cloneJob(job)
	}
	t.mu.RUnlock()

	if !ok {
		// Cache miss, e.g. after a restart. Fall back to the store and
		// repopulate so subsequent polls stay off the database.
		t.mu.Lock()
		var err error
		job, err = t.lookupLocked(ctx, id)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		job = cloneJob(job)
		t.mu.Unlock()
	}

	if job.UserID != userID {
		return nil, ErrForbidden
	}
	return job, nil
}

// lookupLocked returns the cached job, loading it from the store on a miss.
// Caller must hold t.mu for writing. The returned pointer is the cache entry.
func (t *Tracker) lookupLocked(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if job, ok := t.jobs[id]; ok {
		return job, nil
	}
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	t.jobs[id] = job
	return job, nil
}

// cloneJob deep-copies a job so callers never share memory with the cache.
func cloneJob(j *models.Job) *models.Job {
	out := *j
	if j.CurrentStage != nil {
		stage := *j.CurrentStage
		out.CurrentStage = &stage
	}
	if j.Error != nil {
		msg := *j.Error
		out.Error = &msg
	}
	if j.Results != nil {
		out.Results = make(json.RawMessage, len(j.Results))
		copy(out.Results, j.Results)
	}
	return &out
}
