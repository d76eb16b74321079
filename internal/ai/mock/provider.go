package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/alumnitrack/internal/ai"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// MockSummarizer satisfies models.Summarizer for testing.
type MockSummarizer struct {
	Name_         string
	SummarizeFunc func(ctx context.Context, profile models.ProfileFields) (string, error)

	mu    sync.Mutex
	calls []models.ProfileFields
}

func (m *MockSummarizer) Name() string { return m.Name_ }

func (m *MockSummarizer) SummarizeProfile(ctx context.Context, profile models.ProfileFields) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, profile)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, profile)
	}
	return "", nil
}

// Calls returns the profiles passed to SummarizeProfile so far.
func (m *MockSummarizer) Calls() []models.ProfileFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProfileFields(nil), m.calls...)
}

// NewMockSummarizer returns a MockSummarizer with a canned summary.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, p models.ProfileFields) (string, error) {
			return fmt.Sprintf("Mock summary: %s, %s at %s.", p.Name, p.CurrentTitle, p.CurrentCompany), nil
		},
	}
}

// NewFailingSummarizer returns a MockSummarizer that always returns err.
func NewFailingSummarizer(err error) *MockSummarizer {
	return &MockSummarizer{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ models.ProfileFields) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutSummarizer returns a MockSummarizer that blocks until ctx is done.
func NewTimeoutSummarizer() *MockSummarizer {
	return &MockSummarizer{
		Name_: "mock-timeout",
		SummarizeFunc: func(ctx context.Context, _ models.ProfileFields) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

var _ models.Summarizer = (*MockSummarizer)(nil)
