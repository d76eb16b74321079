package ai_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/ai"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSummarizer_None(t *testing.T) {
	s, err := ai.NewSummarizer(config.AIConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestNewSummarizer_Gemini(t *testing.T) {
	cfg := config.AIConfig{
		Provider:         "gemini",
		InferenceTimeout: 10 * time.Second,
		Gemini:           config.GeminiConfig{APIKey: "gm-test", Model: "gemini-1.5-flash-latest"},
	}
	s, err := ai.NewSummarizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", s.Name())
}

func TestNewSummarizer_Ollama(t *testing.T) {
	cfg := config.AIConfig{
		Provider: "ollama",
		Ollama:   config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3"},
	}
	s, err := ai.NewSummarizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", s.Name())
}

func TestNewSummarizer_VLLM(t *testing.T) {
	cfg := config.AIConfig{
		Provider: "vllm",
		VLLM:     config.VLLMConfig{BaseURL: "http://localhost:8000", Model: "mistral-7b"},
	}
	s, err := ai.NewSummarizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "vllm", s.Name())
}

func TestNewSummarizer_OpenAI(t *testing.T) {
	cfg := config.AIConfig{
		Provider: "openai",
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
	}
	s, err := ai.NewSummarizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())
}

func TestNewSummarizer_Anthropic(t *testing.T) {
	cfg := config.AIConfig{
		Provider:  "anthropic",
		Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"},
	}
	s, err := ai.NewSummarizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", s.Name())
}

func TestNewSummarizer_Unknown(t *testing.T) {
	_, err := ai.NewSummarizer(config.AIConfig{Provider: "unknown-provider"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown AI provider")
	assert.Contains(t, err.Error(), "unknown-provider")
}

func TestNewSummarizer_Empty(t *testing.T) {
	_, err := ai.NewSummarizer(config.AIConfig{Provider: ""})
	require.Error(t, err)
}
