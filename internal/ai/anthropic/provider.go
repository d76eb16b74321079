package anthropic

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

const apiVersion = "2023-06-01"

// Provider implements models.Summarizer using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig, timeout time.Duration) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) SummarizeProfile(ctx context.Context, profile models.ProfileFields) (string, error) {
	req := messagesRequest{
		Model:     p.cfg.Model,
		System:    llmclient.SystemPrompt,
		MaxTokens: 300,
		Messages:  []message{{Role: "user", Content: llmclient.ProfilePrompt(profile)}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	if err := llmclient.PostJSON(ctx, p.client, endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	for _, c := range resp.Content {
		if c.Type == "text" {
			return llmclient.CleanSummary(c.Text)
		}
	}
	return "", fmt.Errorf("%w: no text content", llmclient.ErrInvalidResponse)
}

var _ models.Summarizer = (*Provider)(nil)
