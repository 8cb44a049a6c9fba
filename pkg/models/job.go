package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the closed set of lifecycle states for a workflow job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType identifies which pipeline a job runs.
type JobType string

const (
	JobTypeCalendar JobType = "calendar"
	JobTypeGoals    JobType = "goals"
)

// Job tracks one long-running workflow invocation. The API returns a job_id
// on POST /api/v1/workflow/run; the client polls GET /api/v1/jobs/{job_id}
// until status is completed or failed.
//
// ClientName, StartDate, EndDate and UserID are request parameters captured
// at creation and never mutated. Exactly one of Results/Error is set once the
// job reaches a terminal state. CurrentStage is non-nil only while running.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"job_id"`
	UserID       uuid.UUID       `db:"user_id"       json:"user_id"`
	Type         JobType         `db:"type"          json:"type"`
	Status       JobStatus       `db:"status"        json:"status"`
	CurrentStage *int            `db:"current_stage" json:"current_stage"`
	ClientName   string          `db:"client_name"   json:"client_name"`
	StartDate    string          `db:"start_date"    json:"start_date"`
	EndDate      string          `db:"end_date"      json:"end_date"`
	PromptName   string          `db:"prompt_name"   json:"prompt_name,omitempty"`
	Results      json.RawMessage `db:"results"       json:"results"`
	Error        *string         `db:"error"         json:"error"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}
