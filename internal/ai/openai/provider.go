package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/ai/llmclient"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// Provider implements models.Summarizer against any OpenAI-compatible chat
// completions endpoint.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model, timeout)
}

// NewCompatible builds a provider for a self-hosted OpenAI-compatible server.
// apiKey may be empty.
func NewCompatible(name, baseURL, apiKey, model string, timeout time.Duration) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return p.name }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (p *Provider) SummarizeProfile(ctx context.Context, profile models.ProfileFields) (string, error) {
	req := chatCompletionsRequest{
		Model: p.model,
		Messages: []message{
			{Role: "system", Content: llmclient.SystemPrompt},
			{Role: "user", Content: llmclient.ProfilePrompt(profile)},
		},
		Temperature: 0.7,
		MaxTokens:   200,
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp chatCompletionsResponse
	if err := llmclient.PostJSON(ctx, p.client, p.baseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned by model", llmclient.ErrInvalidResponse)
	}
	return llmclient.CleanSummary(resp.Choices[0].Message.Content)
}

var _ models.Summarizer = (*Provider)(nil)
