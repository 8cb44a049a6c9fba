package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailpilot/emailpilot/internal/klaviyo"
	"github.com/emailpilot/emailpilot/internal/llm"
	"github.com/emailpilot/emailpilot/internal/llm/mock"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// --- mock Klaviyo client ---

type mockKlaviyo struct {
	campaigns    []models.CampaignStats
	values       map[string]*klaviyo.CampaignValues
	campaignsErr error
	valuesErr    error
}

func (m *mockKlaviyo) Campaigns(_ context.Context, _ klaviyo.CampaignsRequest) ([]models.CampaignStats, error) {
	if m.campaignsErr != nil {
		return nil, m.campaignsErr
	}
	out := make([]models.CampaignStats, len(m.campaigns))
	copy(out, m.campaigns)
	return out, nil
}

func (m *mockKlaviyo) CampaignValues(_ context.Context, campaignID string) (*klaviyo.CampaignValues, error) {
	if m.valuesErr != nil {
		return nil, m.valuesErr
	}
	if v, ok := m.values[campaignID]; ok {
		return v, nil
	}
	return &klaviyo.CampaignValues{}, nil
}

func (m *mockKlaviyo) Ready(_ context.Context) error { return nil }

var _ klaviyo.Client = (*mockKlaviyo)(nil)

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoCampaigns() *mockKlaviyo {
	return &mockKlaviyo{
		campaigns: []models.CampaignStats{
			{CampaignID: "c1", Name: "September Promo", Channel: "email"},
			{CampaignID: "c2", Name: "Welcome Flow", Channel: "email"},
		},
		values: map[string]*klaviyo.CampaignValues{
			"c1": {Recipients: 1000, OpenRate: 0.40, ClickRate: 0.05, Revenue: 2500},
			"c2": {Recipients: 500, OpenRate: 0.60, ClickRate: 0.10, Revenue: 1000},
		},
	}
}

// waitForTerminal polls the tracker until the job reaches a terminal state.
func waitForTerminal(t *testing.T, tracker *Tracker, jobID, userID uuid.UUID) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := tracker.Get(context.Background(), jobID, userID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
	return nil
}

func newTestExecutor(s *memStore, kc klaviyo.Client, provider models.LLMProvider, genTimeout time.Duration) (*Tracker, *Executor) {
	tracker := NewTracker(s)
	exec := NewExecutor(tracker, s, kc, provider, genTimeout, testLogger())
	return tracker, exec
}

func createAndDispatch(t *testing.T, tracker *Tracker, exec *Executor, userID uuid.UUID, jobType models.JobType) *models.Job {
	t.Helper()
	job, err := tracker.Create(context.Background(), userID, jobType, "acme", "2026-09-01", "2026-09-30", "")
	require.NoError(t, err)
	exec.Dispatch(job)
	return job
}

// --- tests ---

func TestExecutorCalendarPipelineCompletes(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()
	s.clients["acme"] = &models.Client{ID: uuid.New(), UserID: userID, Name: "acme", Industry: "apparel"}

	tracker, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Nil(t, done.CurrentStage)
	assert.Nil(t, done.Error)

	var calendar struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(done.Results, &calendar))
	assert.NotEmpty(t, calendar.Events)
}

func TestExecutorUnregisteredClientStillCompletes(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	tracker, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestExecutorProviderFailureFailsJob(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	tracker, exec := newTestExecutor(s, twoCampaigns(), mock.NewFailingProvider(assert.AnError), time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	assert.Nil(t, done.Results)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "generation stage")
}

func TestExecutorKlaviyoFailureFailsJob(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()
	kc := &mockKlaviyo{campaignsErr: klaviyo.ErrKlaviyoUnreachable}

	tracker, exec := newTestExecutor(s, kc, mock.NewMockProvider(), time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "metrics stage")
}

func TestExecutorGenerationTimeoutFailsJob(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	tracker, exec := newTestExecutor(s, twoCampaigns(), mock.NewTimeoutProvider(), 50*time.Millisecond)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "timeout")
}

func TestExecutorInvalidProviderOutputFailsValidation(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	provider := &mock.MockProvider{
		Name_: "mock",
		CalendarFunc: func(_ context.Context, _ models.CalendarRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"unexpected": true}`), nil
		},
	}
	tracker, exec := newTestExecutor(s, twoCampaigns(), provider, time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "invalid response")
}

func TestExecutorPanicIsRecovered(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	provider := &mock.MockProvider{
		Name_: "mock",
		CalendarFunc: func(_ context.Context, _ models.CalendarRequest) (json.RawMessage, error) {
			panic("exploded")
		},
	}
	tracker, exec := newTestExecutor(s, twoCampaigns(), provider, time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeCalendar)

	done := waitForTerminal(t, tracker, job.ID, userID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.Error)
	assert.Contains(t, *done.Error, "internal error")
}

func TestExecutorGoalsPipelinePersistsGoalSet(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()

	tracker, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)
	job := createAndDispatch(t, tracker, exec, userID, models.JobTypeGoals)

	done := waitForTerminal(t, tracker, job.ID, userID)
	require.Equal(t, models.JobStatusCompleted, done.Status)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.goalSets, 1)
	gs := s.goalSets[0]
	assert.Equal(t, userID, gs.UserID)
	assert.Equal(t, "acme", gs.ClientName)
	require.NotNil(t, gs.JobID)
	assert.Equal(t, job.ID, *gs.JobID)
	assert.JSONEq(t, string(done.Results), string(gs.Goals))
}

func TestRetrieveIncludesRecentGoals(t *testing.T) {
	s := newMemStore()
	userID := uuid.New()
	s.clients["acme"] = &models.Client{ID: uuid.New(), UserID: userID, Name: "acme"}
	s.goalSets = append(s.goalSets, &models.GoalSet{
		ID:         uuid.New(),
		UserID:     userID,
		ClientName: "acme",
		Goals:      json.RawMessage(`{"goals":[]}`),
	})

	_, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)

	clientCtx, err := exec.Retrieve(context.Background(), userID, "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", clientCtx.Client.Name)
	assert.Len(t, clientCtx.RecentGoals, 1)
}

func TestCollectMetricsAggregates(t *testing.T) {
	s := newMemStore()
	_, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)

	summary, err := exec.CollectMetrics(context.Background(), "2026-09-01", "2026-09-30")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Campaigns)
	assert.Equal(t, 1500, summary.TotalRecipients)
	assert.InDelta(t, 3500, summary.TotalRevenue, 0.001)
	// Recipient-weighted open rate: (0.40*1000 + 0.60*500) / 1500
	assert.InDelta(t, 0.4667, summary.AvgOpenRate, 0.001)
	require.Len(t, summary.TopCampaigns, 2)
	assert.Equal(t, "c1", summary.TopCampaigns[0].CampaignID)
}

func TestCollectMetricsRejectsBadDates(t *testing.T) {
	s := newMemStore()
	_, exec := newTestExecutor(s, twoCampaigns(), mock.NewMockProvider(), time.Minute)

	_, err := exec.CollectMetrics(context.Background(), "September 1st", "2026-09-30")
	require.Error(t, err)
}

func TestGenerateGoalsValidatesSchema(t *testing.T) {
	s := newMemStore()
	provider := &mock.MockProvider{
		Name_: "mock",
		GoalsFunc: func(_ context.Context, _ models.GoalsRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"goals": []}`), nil
		},
	}
	_, exec := newTestExecutor(s, twoCampaigns(), provider, time.Minute)

	_, err := exec.GenerateGoals(context.Background(), models.GoalsRequest{ClientName: "acme"})
	assert.ErrorIs(t, err, llm.ErrInvalidResponse)
}
