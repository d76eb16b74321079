package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/ai/llmclient"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// Provider implements models.Summarizer using the Gemini generateContent API.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

func NewProvider(cfg config.GeminiConfig, timeout time.Duration) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (p *Provider) SummarizeProfile(ctx context.Context, profile models.ProfileFields) (string, error) {
	var req generateRequest
	req.Contents = []content{{Parts: []part{{Text: llmclient.ProfilePrompt(profile)}}}}
	req.GenerationConfig.Temperature = 0.7
	req.GenerationConfig.MaxOutputTokens = 200

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.Model), url.QueryEscape(p.cfg.APIKey))

	var resp generateResponse
	if err := llmclient.PostJSON(ctx, p.client, endpoint, nil, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", llmclient.ErrInvalidResponse)
	}
	return llmclient.CleanSummary(resp.Candidates[0].Content.Parts[0].Text)
}

var _ models.Summarizer = (*Provider)(nil)
