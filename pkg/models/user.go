package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. Every job, client and goal set belongs
// to a user, and a job is visible only to the user who created it.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
