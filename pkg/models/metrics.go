package models

import "time"

// CampaignStats holds performance numbers for a single Klaviyo campaign.
type CampaignStats struct {
	CampaignID string    `json:"campaign_id"`
	Name       string    `json:"name"`
	Channel    string    `json:"channel"`
	SendTime   time.Time `json:"send_time"`
	Recipients int       `json:"recipients"`
	OpenRate   float64   `json:"open_rate"`
	ClickRate  float64   `json:"click_rate"`
	Revenue    float64   `json:"revenue"`
}

// MetricSummary is an aggregate view over a set of campaigns, used both by
// the metrics proxy endpoint and as LLM prompt input.
type MetricSummary struct {
	Campaigns       int             `json:"campaigns"`
	TotalRecipients int             `json:"total_recipients"`
	TotalRevenue    float64         `json:"total_revenue"`
	AvgOpenRate     float64         `json:"avg_open_rate"`
	AvgClickRate    float64         `json:"avg_click_rate"`
	TopCampaigns    []CampaignStats `json:"top_campaigns"`
}
