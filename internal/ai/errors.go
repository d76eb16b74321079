package ai

import "github.com/kiranshivaraju/alumnitrack/internal/ai/llmclient"

var (
	ErrProviderUnavailable = llmclient.ErrProviderUnavailable
	ErrInferenceTimeout    = llmclient.ErrInferenceTimeout
	ErrInvalidResponse     = llmclient.ErrInvalidResponse
)
