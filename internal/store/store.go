package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/emailpilot/emailpilot/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultUser(ctx context.Context) (*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	UpsertClient(ctx context.Context, client *models.Client) (*models.Client, error)
	GetClientByName(ctx context.Context, userID uuid.UUID, name string) (*models.Client, error)

	CreateGoalSet(ctx context.Context, gs *models.GoalSet) error
	ListGoalSets(ctx context.Context, userID uuid.UUID, clientName string, limit int) ([]*models.GoalSet, error)

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, opts ...JobUpdateOption) error
}

// JobUpdate collects the optional fields of a status update. Store
// implementations and test fakes apply options onto it.
type JobUpdate struct {
	Stage        *int
	Results      json.RawMessage
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

// WithStage records the pipeline stage the job is currently running.
func WithStage(stage int) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Stage = &stage
	}
}

// WithResults attaches the terminal result payload.
func WithResults(results json.RawMessage) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Results = results
	}
}

// WithErrorMessage attaches the terminal error string.
func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}
