package vllm

import (
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/ai/openai"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
)

// NewProvider returns a summarizer for a vLLM server, which speaks the OpenAI
// chat completions protocol.
func NewProvider(cfg config.VLLMConfig, timeout time.Duration) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model, timeout)
}
