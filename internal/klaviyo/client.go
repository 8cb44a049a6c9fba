package klaviyo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/emailpilot/emailpilot/pkg/kfilter"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// Sentinel errors for Klaviyo client failures.
var (
	ErrKlaviyoUnreachable = errors.New("klaviyo unreachable")
	ErrKlaviyoRequest     = errors.New("klaviyo request error")
	ErrKlaviyoTimeout     = errors.New("klaviyo request timeout")
)

// Client is the interface for fetching campaign data from Klaviyo.
type Client interface {
	Campaigns(ctx context.Context, req CampaignsRequest) ([]models.CampaignStats, error)
	CampaignValues(ctx context.Context, campaignID string) (*CampaignValues, error)
	Ready(ctx context.Context) error
}

// CampaignsRequest defines parameters for a campaign listing query.
type CampaignsRequest struct {
	Channel string
	Start   time.Time
	End     time.Time
}

// CampaignValues holds per-campaign performance numbers from the
// campaign-values report endpoint.
type CampaignValues struct {
	Recipients int     `json:"recipients"`
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	Revenue    float64 `json:"conversion_value"`
}

// HTTPClient implements Client using Klaviyo's HTTP API.
type HTTPClient struct {
	baseURL  string
	apiKey   string
	revision string
	client   *http.Client
}

// NewHTTPClient creates a new Klaviyo HTTP client.
func NewHTTPClient(baseURL, apiKey, revision string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		revision: revision,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Campaigns(ctx context.Context, req CampaignsRequest) ([]models.CampaignStats, error) {
	fb := kfilter.Builder{}
	filter := fb.BuildCampaignFilter(kfilter.CampaignParams{
		Channel: req.Channel,
		Start:   req.Start,
		End:     req.End,
	})

	params := url.Values{
		"filter": {filter},
		"sort":   {"-scheduled_at"},
	}
	u := fmt.Sprintf("%s/api/campaigns?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrKlaviyoRequest, resp.StatusCode)
	}

	var listResp campaignListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decoding campaigns response: %w", err)
	}

	return parseCampaigns(listResp.Data), nil
}

func (c *HTTPClient) CampaignValues(ctx context.Context, campaignID string) (*CampaignValues, error) {
	u := fmt.Sprintf("%s/api/campaign-values-reports", c.baseURL)

	body, err := json.Marshal(valuesReportRequest{
		Data: valuesReportData{
			Type: "campaign-values-report",
			Attributes: valuesReportAttributes{
				Timeframe:  timeframe{Key: "last_12_months"},
				Statistics: []string{"recipients", "open_rate", "click_rate", "conversion_value"},
				Filter:     kfilter.Builder{}.Equals("campaign_id", campaignID),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding values request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d", ErrKlaviyoRequest, resp.StatusCode)
	}

	var valuesResp valuesReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&valuesResp); err != nil {
		return nil, fmt.Errorf("decoding values response: %w", err)
	}

	if len(valuesResp.Data.Attributes.Results) == 0 {
		return &CampaignValues{}, nil
	}
	st := valuesResp.Data.Attributes.Results[0].Statistics
	return &CampaignValues{
		Recipients: int(st["recipients"]),
		OpenRate:   st["open_rate"],
		ClickRate:  st["click_rate"],
		Revenue:    st["conversion_value"],
	}, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/api/accounts", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKlaviyoUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: klaviyo not ready (status %d)", ErrKlaviyoUnreachable, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Klaviyo-API-Key "+c.apiKey)
	req.Header.Set("revision", c.revision)
	req.Header.Set("Accept", "application/json")
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrKlaviyoTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrKlaviyoTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrKlaviyoUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrKlaviyoUnreachable, err)
}

// parseCampaigns converts Klaviyo campaign resources into CampaignStats.
// Performance numbers are filled in separately via CampaignValues.
func parseCampaigns(data []campaignResource) []models.CampaignStats {
	stats := make([]models.CampaignStats, 0, len(data))
	for _, d := range data {
		stats = append(stats, models.CampaignStats{
			CampaignID: d.ID,
			Name:       d.Attributes.Name,
			Channel:    d.Attributes.Channel,
			SendTime:   d.Attributes.ScheduledAt,
		})
	}
	return stats
}

// --- Klaviyo response types ---

type campaignListResponse struct {
	Data []campaignResource `json:"data"`
}

type campaignResource struct {
	ID         string             `json:"id"`
	Attributes campaignAttributes `json:"attributes"`
}

type campaignAttributes struct {
	Name        string    `json:"name"`
	Channel     string    `json:"channel"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type valuesReportRequest struct {
	Data valuesReportData `json:"data"`
}

type valuesReportData struct {
	Type       string                 `json:"type"`
	Attributes valuesReportAttributes `json:"attributes"`
}

type valuesReportAttributes struct {
	Timeframe  timeframe `json:"timeframe"`
	Statistics []string  `json:"statistics"`
	Filter     string    `json:"filter"`
}

type timeframe struct {
	Key string `json:"key"`
}

type valuesReportResponse struct {
	Data struct {
		Attributes struct {
			Results []struct {
				Statistics map[string]float64 `json:"statistics"`
			} `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
