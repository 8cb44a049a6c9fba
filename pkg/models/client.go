package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a managed marketing client. The client's Klaviyo account
// is the source of campaign and metric data for its workflows.
type Client struct {
	ID               uuid.UUID `db:"id"                 json:"id"`
	UserID           uuid.UUID `db:"user_id"            json:"user_id"`
	Name             string    `db:"name"               json:"name"`
	Industry         string    `db:"industry"           json:"industry"`
	BrandVoice       string    `db:"brand_voice"        json:"brand_voice"`
	KlaviyoAccountID string    `db:"klaviyo_account_id" json:"klaviyo_account_id"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`
}

// ClientContext is the retrieval output of the first pipeline stage: the
// client profile plus recent goal history fed into calendar generation.
type ClientContext struct {
	Client      Client    `json:"client"`
	RecentGoals []GoalSet `json:"recent_goals"`
}
