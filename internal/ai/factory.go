package ai

import (
	"fmt"

	"github.com/kiranshivaraju/alumnitrack/internal/ai/anthropic"
	"github.com/kiranshivaraju/alumnitrack/internal/ai/gemini"
	"github.com/kiranshivaraju/alumnitrack/internal/ai/ollama"
	"github.com/kiranshivaraju/alumnitrack/internal/ai/openai"
	"github.com/kiranshivaraju/alumnitrack/internal/ai/vllm"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// NewSummarizer constructs the configured summary provider.
// Provider "none" returns a nil Summarizer and no error.
func NewSummarizer(cfg config.AIConfig) (models.Summarizer, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "gemini":
		return gemini.NewProvider(cfg.Gemini, cfg.InferenceTimeout), nil
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, cfg.InferenceTimeout), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM, cfg.InferenceTimeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.InferenceTimeout), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of none, gemini, ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
