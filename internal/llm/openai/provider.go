package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	oai "github.com/sashabaranov/go-openai"

	"github.com/emailpilot/emailpilot/internal/config"
	"github.com/emailpilot/emailpilot/internal/llm/prompt"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// Provider implements models.LLMProvider using OpenAI chat completions.
type Provider struct {
	cfg    config.OpenAIConfig
	client *oai.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{cfg: cfg, client: oai.NewClient(cfg.APIKey)}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) GenerateCalendar(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error) {
	system, user := prompt.BuildCalendar(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) GenerateGoals(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error) {
	system, user := prompt.BuildGoals(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) complete(ctx context.Context, system, user string) (json.RawMessage, error) {
	resp, err := p.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: p.cfg.Model,
		ResponseFormat: &oai.ChatCompletionResponseFormat{
			Type: oai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: system},
			{Role: oai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	raw := json.RawMessage(resp.Choices[0].Message.Content)
	if !json.Valid(raw) {
		return nil, errors.New("openai returned malformed JSON")
	}
	return raw, nil
}

var _ models.LLMProvider = (*Provider)(nil)
