// Package models contains shared data models used across the EmailPilot codebase.
package models

import (
	"context"
	"encoding/json"
)

// LLMProvider is the core interface that all LLM integrations must implement.
// Never call specific providers directly — always inject this interface.
type LLMProvider interface {
	// GenerateCalendar produces a campaign calendar for the client and window
	// described by req. The returned payload conforms to the calendar schema.
	GenerateCalendar(ctx context.Context, req CalendarRequest) (json.RawMessage, error)
	// GenerateGoals drafts a batch of marketing goals from campaign history.
	GenerateGoals(ctx context.Context, req GoalsRequest) (json.RawMessage, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// CalendarRequest is the input to calendar generation: the immutable request
// parameters plus the outputs of the retrieval and metrics stages.
type CalendarRequest struct {
	ClientName string
	StartDate  string // YYYY-MM-DD
	EndDate    string // YYYY-MM-DD
	PromptName string
	Context    ClientContext
	Metrics    MetricSummary
}

// GoalsRequest is the input to batch goal generation.
type GoalsRequest struct {
	ClientName string
	StartDate  string
	EndDate    string
	Context    ClientContext
	Metrics    MetricSummary
}
