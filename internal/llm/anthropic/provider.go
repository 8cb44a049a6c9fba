package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/emailpilot/emailpilot/internal/config"
	"github.com/emailpilot/emailpilot/internal/llm/prompt"
	"github.com/emailpilot/emailpilot/pkg/models"
)

const (
	messagesURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	maxTokens        = 4096
)

// Provider implements models.LLMProvider using the Anthropic messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) GenerateCalendar(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error) {
	system, user := prompt.BuildCalendar(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) GenerateGoals(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error) {
	system, user := prompt.BuildGoals(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) complete(ctx context.Context, system, user string) (json.RawMessage, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding messages request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic messages: status %d", resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return nil, fmt.Errorf("decoding messages response: %w", err)
	}
	if len(msgResp.Content) == 0 {
		return nil, errors.New("anthropic returned no content")
	}

	raw := json.RawMessage(msgResp.Content[0].Text)
	if !json.Valid(raw) {
		return nil, errors.New("anthropic returned malformed JSON")
	}
	return raw, nil
}

// --- Anthropic wire types ---

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var _ models.LLMProvider = (*Provider)(nil)
