package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GoalSet holds one batch of LLM-generated marketing goals for a client over
// a date window. Goals is the raw generated payload, validated against the
// goal schema before it is persisted.
type GoalSet struct {
	ID         uuid.UUID       `db:"id"          json:"id"`
	UserID     uuid.UUID       `db:"user_id"     json:"user_id"`
	JobID      *uuid.UUID      `db:"job_id"      json:"job_id,omitempty"`
	ClientName string          `db:"client_name" json:"client_name"`
	StartDate  string          `db:"start_date"  json:"start_date"`
	EndDate    string          `db:"end_date"    json:"end_date"`
	Goals      json.RawMessage `db:"goals"       json:"goals"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}
