package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mw "github.com/emailpilot/emailpilot/internal/api/middleware"
	"github.com/emailpilot/emailpilot/internal/api/response"
	"github.com/emailpilot/emailpilot/internal/jobs"
	"github.com/emailpilot/emailpilot/internal/klaviyo"
	"github.com/emailpilot/emailpilot/internal/llm/mock"
	"github.com/emailpilot/emailpilot/internal/store"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// --- fake store ---

type fakeStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*models.Job
	clients  map[string]*models.Client
	goalSets []*models.GoalSet
	keys     map[uuid.UUID]*models.APIKey
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    make(map[uuid.UUID]*models.Job),
		clients: make(map[string]*models.Client),
		keys:    make(map[uuid.UUID]*models.APIKey),
	}
}

func (s *fakeStore) Ping(_ context.Context) error { return nil }
func (s *fakeStore) GetDefaultUser(_ context.Context) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *fakeStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *fakeStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *fakeStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key
	return nil
}

func (s *fakeStore) ListAPIKeys(_ context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeStore) RevokeAPIKey(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

func (s *fakeStore) UpsertClient(_ context.Context, c *models.Client) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.clients[c.Name] = c
	return c, nil
}

func (s *fakeStore) GetClientByName(_ context.Context, _ uuid.UUID, name string) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) CreateGoalSet(_ context.Context, gs *models.GoalSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goalSets = append(s.goalSets, gs)
	return nil
}

func (s *fakeStore) ListGoalSets(_ context.Context, _ uuid.UUID, _ string, _ int) ([]*models.GoalSet, error) {
	return nil, nil
}

func (s *fakeStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status models.JobStatus, opts ...store.JobUpdateOption) error {
	params := &store.JobUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if status.Terminal() {
		job.CurrentStage = nil
	} else if params.Stage != nil {
		job.CurrentStage = params.Stage
	}
	if params.Results != nil {
		job.Results = params.Results
	}
	if params.ErrorMessage != nil {
		job.Error = params.ErrorMessage
	}
	return nil
}

var _ store.Store = (*fakeStore)(nil)

// --- fake Klaviyo client ---

type fakeKlaviyo struct {
	campaigns []models.CampaignStats
	err       error
}

func (f *fakeKlaviyo) Campaigns(_ context.Context, _ klaviyo.CampaignsRequest) ([]models.CampaignStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.CampaignStats, len(f.campaigns))
	copy(out, f.campaigns)
	return out, nil
}

func (f *fakeKlaviyo) CampaignValues(_ context.Context, _ string) (*klaviyo.CampaignValues, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &klaviyo.CampaignValues{Recipients: 100, OpenRate: 0.5, ClickRate: 0.1, Revenue: 900}, nil
}

func (f *fakeKlaviyo) Ready(_ context.Context) error { return f.err }

var _ klaviyo.Client = (*fakeKlaviyo)(nil)

// --- fake cache ---

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	gets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Ping(_ context.Context) error { return nil }

func (c *fakeCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- harness ---

type harness struct {
	store   *fakeStore
	tracker *jobs.Tracker
	exec    *jobs.Executor
	userID  uuid.UUID
}

func newHarness(kc klaviyo.Client, provider models.LLMProvider) *harness {
	s := newFakeStore()
	tracker := jobs.NewTracker(s)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{
		store:   s,
		tracker: tracker,
		exec:    jobs.NewExecutor(tracker, s, kc, provider, time.Minute, logger),
		userID:  uuid.New(),
	}
}

func defaultHarness() *harness {
	return newHarness(
		&fakeKlaviyo{campaigns: []models.CampaignStats{{CampaignID: "c1", Name: "Promo", Channel: "email"}}},
		mock.NewMockProvider(),
	)
}

// doJSON runs a handler with an authenticated request and decodes the envelope.
func (h *harness) doJSON(t *testing.T, handlerFn http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(mw.SetUserID(req.Context(), h.userID))

	rec := httptest.NewRecorder()
	handlerFn(rec, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

// doRouted serves the request through a chi router so URL params resolve.
func (h *harness) doRouted(t *testing.T, router http.Handler, method, target string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req = req.WithContext(mw.SetUserID(req.Context(), h.userID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func newRequestWithoutUser(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return httptest.NewRequest(method, target, reader)
}

func doRaw(handlerFn http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handlerFn(rec, req)
	return rec
}

// dataJSON re-marshals the envelope's data field for structured decoding.
func dataJSON(t *testing.T, env response.Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	return raw
}
