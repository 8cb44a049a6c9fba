package metrics

import (
	"sort"

	"github.com/emailpilot/emailpilot/pkg/models"
)

const topCampaignLimit = 5

// Summarize rolls a set of campaigns up into a MetricSummary.
// Open and click rates are weighted by recipient count; campaigns with zero
// recipients contribute revenue but not rate weight.
// Returns a zero-valued summary with an empty TopCampaigns slice (never nil)
// for empty input.
func Summarize(campaigns []models.CampaignStats) models.MetricSummary {
	summary := models.MetricSummary{
		Campaigns:    len(campaigns),
		TopCampaigns: []models.CampaignStats{},
	}
	if len(campaigns) == 0 {
		return summary
	}

	var openWeighted, clickWeighted float64
	for _, c := range campaigns {
		summary.TotalRecipients += c.Recipients
		summary.TotalRevenue += c.Revenue
		openWeighted += c.OpenRate * float64(c.Recipients)
		clickWeighted += c.ClickRate * float64(c.Recipients)
	}

	if summary.TotalRecipients > 0 {
		summary.AvgOpenRate = openWeighted / float64(summary.TotalRecipients)
		summary.AvgClickRate = clickWeighted / float64(summary.TotalRecipients)
	}

	summary.TopCampaigns = topByRevenue(campaigns, topCampaignLimit)
	return summary
}

// topByRevenue returns the n highest-revenue campaigns, ties broken by
// recipient count descending. Input is not mutated.
func topByRevenue(campaigns []models.CampaignStats, n int) []models.CampaignStats {
	sorted := make([]models.CampaignStats, len(campaigns))
	copy(sorted, campaigns)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Revenue != sorted[j].Revenue {
			return sorted[i].Revenue > sorted[j].Revenue
		}
		return sorted[i].Recipients > sorted[j].Recipients
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
