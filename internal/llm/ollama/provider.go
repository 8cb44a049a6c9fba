package ollama

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

// Provider implements models.LLMProvider using a local Ollama instance.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

func (p *Provider) GenerateCalendar(ctx context.Context, req models.CalendarRequest) (json.RawMessage, error) {
	system, user := prompt.BuildCalendar(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) GenerateGoals(ctx context.Context, req models.GoalsRequest) (json.RawMessage, error) {
	system, user := prompt.BuildGoals(req)
	return p.complete(ctx, system, user)
}

func (p *Provider) complete(ctx context.Context, system, user string) (json.RawMessage, error) {
	body, err := json.Marshal(chatRequest{
		Model:  p.cfg.Model,
		Stream: false,
		Format: "json",
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	u := p.cfg.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama chat: status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	raw := json.RawMessage(chatResp.Message.Content)
	if !json.Valid(raw) {
		return nil, errors.New("ollama returned malformed JSON")
	}
	return raw, nil
}

// --- Ollama wire types ---

type chatRequest struct {
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message message `json:"message"`
}

var _ models.LLMProvider = (*Provider)(nil)
