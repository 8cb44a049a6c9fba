// Package prompt renders the system and user prompts shared by all LLM
// providers. Prompts instruct the model to answer with a single JSON object
// so the output can be schema-validated before acceptance.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/emailpilot/emailpilot/pkg/models"
)

const calendarSystem = `You are an email marketing planner. Given a client profile, their recent goals, and campaign performance metrics, produce a campaign calendar for the requested date range. Respond with a single JSON object of the form {"events": [{"date": "YYYY-MM-DD", "title": "...", "campaign_type": "...", "description": "..."}]}. Do not include any text outside the JSON object.`

const goalsSystem = `You are an email marketing strategist. Given a client profile and campaign performance metrics, draft measurable marketing goals for the requested date range. Respond with a single JSON object of the form {"goals": [{"title": "...", "metric": "...", "target": "...", "rationale": "..."}]}. Do not include any text outside the JSON object.`

// BuildCalendar renders the prompt pair for calendar generation.
func BuildCalendar(req models.CalendarRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\nDate range: %s to %s\n", req.ClientName, req.StartDate, req.EndDate)
	if req.PromptName != "" {
		fmt.Fprintf(&b, "Prompt variant: %s\n", req.PromptName)
	}
	writeClientContext(&b, req.Context)
	writeMetrics(&b, req.Metrics)
	b.WriteString("\nGenerate the campaign calendar now.")
	return calendarSystem, b.String()
}

// BuildGoals renders the prompt pair for batch goal generation.
func BuildGoals(req models.GoalsRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\nDate range: %s to %s\n", req.ClientName, req.StartDate, req.EndDate)
	writeClientContext(&b, req.Context)
	writeMetrics(&b, req.Metrics)
	b.WriteString("\nDraft the marketing goals now.")
	return goalsSystem, b.String()
}

func writeClientContext(b *strings.Builder, ctx models.ClientContext) {
	if ctx.Client.Industry != "" {
		fmt.Fprintf(b, "Industry: %s\n", ctx.Client.Industry)
	}
	if ctx.Client.BrandVoice != "" {
		fmt.Fprintf(b, "Brand voice: %s\n", ctx.Client.BrandVoice)
	}
	if len(ctx.RecentGoals) > 0 {
		b.WriteString("Recent goals:\n")
		for _, gs := range ctx.RecentGoals {
			fmt.Fprintf(b, "- %s to %s: %s\n", gs.StartDate, gs.EndDate, compactJSON(gs.Goals))
		}
	}
}

func writeMetrics(b *strings.Builder, m models.MetricSummary) {
	if m.Campaigns == 0 {
		b.WriteString("No campaign history available.\n")
		return
	}
	fmt.Fprintf(b, "Campaign history: %d campaigns, %d recipients, $%.2f revenue, %.1f%% avg open rate, %.1f%% avg click rate\n",
		m.Campaigns, m.TotalRecipients, m.TotalRevenue, m.AvgOpenRate*100, m.AvgClickRate*100)
	for _, c := range m.TopCampaigns {
		fmt.Fprintf(b, "- %q (%s): %d recipients, %.1f%% open, $%.2f revenue\n",
			c.Name, c.SendTime.Format("2006-01-02"), c.Recipients, c.OpenRate*100, c.Revenue)
	}
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
