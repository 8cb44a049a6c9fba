package mock

import (
	"context"
	"encoding/json"

	"github.com/emailpilot/emailpilot/internal/llm"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// MockProvider satisfies models.LLMProvider for testing.
type MockProvider struct {
	Name_        string
	CalendarFunc func(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error)
	GoalsFunc    func(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateCalendar(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error) {
	if m.CalendarFunc != nil {
		return m.CalendarFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockProvider) GenerateGoals(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error) {
	if m.GoalsFunc != nil {
		return m.GoalsFunc(ctx, req)
	}
	return nil, nil
}

// NewMockProvider returns a MockProvider with schema-valid default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		CalendarFunc: func(_ context.Context, req models.CalendarRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"events": [{"date": "` + req.StartDate + `", "title": "Welcome series kickoff", "campaign_type": "email", "description": "Mock calendar event for testing"}]}`), nil
		},
		GoalsFunc: func(_ context.Context, _ models.GoalsRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"goals": [{"title": "Grow list engagement", "metric": "open_rate", "target": "35%", "rationale": "Mock goal for testing"}]}`), nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		CalendarFunc: func(_ context.Context, _ models.CalendarRequest) (json.RawMessage, error) {
			return nil, err
		},
		GoalsFunc: func(_ context.Context, _ models.GoalsRequest) (json.RawMessage, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		CalendarFunc: func(ctx context.Context, _ models.CalendarRequest) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, llm.ErrGenerationTimeout
		},
		GoalsFunc: func(ctx context.Context, _ models.GoalsRequest) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, llm.ErrGenerationTimeout
		},
	}
}

// Compile-time check that MockProvider implements LLMProvider.
var _ models.LLMProvider = (*MockProvider)(nil)
