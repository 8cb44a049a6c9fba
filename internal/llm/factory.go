package llm

import (
	"fmt"

	"github.com/emailpilot/emailpilot/internal/config"
	"github.com/emailpilot/emailpilot/internal/llm/anthropic"
	"github.com/emailpilot/emailpilot/internal/llm/ollama"
	"github.com/emailpilot/emailpilot/internal/llm/openai"
	"github.com/emailpilot/emailpilot/pkg/models"
)

// NewProvider constructs the appropriate LLM provider based on config.
// Called once at server startup.
func NewProvider(cfg config.LLMConfig) (models.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of ollama, openai, anthropic", cfg.Provider)
	}
}
