package prompt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emailpilot/emailpilot/pkg/models"
)

func calendarReq() models.CalendarRequest {
	return models.CalendarRequest{
		ClientName: "Acme Coffee",
		StartDate:  "2026-09-01",
		EndDate:    "2026-09-30",
		Context: models.ClientContext{
			Client: models.Client{
				Name:       "Acme Coffee",
				Industry:   "Food & Beverage",
				BrandVoice: "warm and playful",
			},
			RecentGoals: []models.GoalSet{
				{
					StartDate: "2026-08-01",
					EndDate:   "2026-08-31",
					Goals:     json.RawMessage(`{ "goals": [ {"title": "Grow list"} ] }`),
				},
			},
		},
		Metrics: models.MetricSummary{
			Campaigns:       3,
			TotalRecipients: 4500,
			TotalRevenue:    3500.50,
			AvgOpenRate:     0.42,
			AvgClickRate:    0.05,
			TopCampaigns: []models.CampaignStats{
				{
					Name:       "Summer Sale",
					SendTime:   time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
					Recipients: 2000,
					OpenRate:   0.55,
					Revenue:    2100,
				},
			},
		},
	}
}

func TestBuildCalendar(t *testing.T) {
	system, user := BuildCalendar(calendarReq())

	assert.Contains(t, system, "email marketing planner")
	assert.Contains(t, system, `"events"`)

	assert.Contains(t, user, "Client: Acme Coffee\n")
	assert.Contains(t, user, "Date range: 2026-09-01 to 2026-09-30\n")
	assert.Contains(t, user, "Industry: Food & Beverage\n")
	assert.Contains(t, user, "Brand voice: warm and playful\n")
	assert.Contains(t, user, "Generate the campaign calendar now.")
	assert.NotContains(t, user, "Prompt variant:")
}

func TestBuildCalendar_PromptVariant(t *testing.T) {
	req := calendarReq()
	req.PromptName = "holiday-push"

	_, user := BuildCalendar(req)
	assert.Contains(t, user, "Prompt variant: holiday-push\n")
}

func TestBuildCalendar_RecentGoalsCompacted(t *testing.T) {
	_, user := BuildCalendar(calendarReq())

	assert.Contains(t, user, "Recent goals:\n")
	// The stored payload is pretty-printed; the prompt carries it compacted.
	assert.Contains(t, user, `- 2026-08-01 to 2026-08-31: {"goals":[{"title":"Grow list"}]}`)
}

func TestBuildCalendar_MetricsSummary(t *testing.T) {
	_, user := BuildCalendar(calendarReq())

	assert.Contains(t, user, "Campaign history: 3 campaigns, 4500 recipients, $3500.50 revenue, 42.0% avg open rate, 5.0% avg click rate\n")
	assert.Contains(t, user, `- "Summer Sale" (2026-08-15): 2000 recipients, 55.0% open, $2100.00 revenue`)
}

func TestBuildCalendar_NoCampaignHistory(t *testing.T) {
	req := calendarReq()
	req.Metrics = models.MetricSummary{}

	_, user := BuildCalendar(req)
	assert.Contains(t, user, "No campaign history available.\n")
	assert.NotContains(t, user, "Campaign history:")
}

func TestBuildGoals(t *testing.T) {
	req := models.GoalsRequest{
		ClientName: "Acme Coffee",
		StartDate:  "2026-09-01",
		EndDate:    "2026-09-30",
	}

	system, user := BuildGoals(req)

	assert.Contains(t, system, "email marketing strategist")
	assert.Contains(t, system, `"goals"`)
	assert.Contains(t, user, "Client: Acme Coffee\n")
	assert.Contains(t, user, "Date range: 2026-09-01 to 2026-09-30\n")
	assert.Contains(t, user, "No campaign history available.\n")
	assert.Contains(t, user, "Draft the marketing goals now.")
}

func TestCompactJSON_InvalidFallsBackToRaw(t *testing.T) {
	raw := json.RawMessage(`not json`)
	assert.Equal(t, "not json", compactJSON(raw))
}
