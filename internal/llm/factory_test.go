package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailpilot/emailpilot/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{"ollama", "ollama"},
		{"openai", "openai"},
		{"anthropic", "anthropic"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(config.LLMConfig{
				Provider:  tt.provider,
				Ollama:    config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3"},
				OpenAI:    config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o"},
				Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(config.LLMConfig{Provider: "bedrock"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown LLM provider "bedrock"`)
}
