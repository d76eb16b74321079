package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/ai/llmclient"
	"github.com/kiranshivaraju/alumnitrack/internal/config"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// Provider implements models.Summarizer using Ollama's /api/generate.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig, timeout time.Duration) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model   string `json:"model"`
	System  string `json:"system"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict"`
	} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (p *Provider) SummarizeProfile(ctx context.Context, profile models.ProfileFields) (string, error) {
	req := generateRequest{
		Model:  p.cfg.Model,
		System: llmclient.SystemPrompt,
		Prompt: llmclient.ProfilePrompt(profile),
	}
	req.Options.Temperature = 0.7
	req.Options.NumPredict = 200

	var resp generateResponse
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/generate"
	if err := llmclient.PostJSON(ctx, p.client, endpoint, nil, req, &resp); err != nil {
		return "", err
	}
	return llmclient.CleanSummary(resp.Response)
}

var _ models.Summarizer = (*Provider)(nil)
