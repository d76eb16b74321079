package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/coordinator"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/stretchr/testify/require"
)

// --- mock JobService ---

type mockJobs struct {
	mu sync.Mutex

	created      []models.JobRow
	createdName  string
	createErr    error
	jobs         map[uuid.UUID]*models.ScrapingJob
	listFilter   store.JobFilter
	listErr      error
	items        []*models.QueueItem
	queueStatus  string
	triggerErr   error
	triggered    []uuid.UUID
	retryErr     error
	failures     []models.FailureGroup
	handlers     *notify.Handlers
	subscribed   chan struct{}
	unsubscribed bool
}

func newMockJobs() *mockJobs {
	return &mockJobs{
		jobs:       make(map[uuid.UUID]*models.ScrapingJob),
		subscribed: make(chan struct{}),
	}
}

func (m *mockJobs) add(status string) *models.ScrapingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := &models.ScrapingJob{
		ID:            uuid.New(),
		Filename:      "alumni.csv",
		TotalProfiles: 2,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	m.jobs[j.ID] = j
	return j
}

func (m *mockJobs) CreateJob(_ context.Context, filename string, rows []models.JobRow) (*models.ScrapingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createdName, m.created = filename, rows
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.ScrapingJob{ID: uuid.New(), Filename: filename, TotalProfiles: len(rows), Status: models.StatusPending}, nil
}

func (m *mockJobs) GetJob(_ context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, coordinator.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (m *mockJobs) ListJobs(_ context.Context, filter store.JobFilter) ([]*models.ScrapingJob, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []*models.ScrapingJob
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out, len(out), nil
}

func (m *mockJobs) ListQueueItems(_ context.Context, id uuid.UUID, status string) ([]*models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return nil, coordinator.ErrNotFound
	}
	m.queueStatus = status
	return m.items, nil
}

func (m *mockJobs) Trigger(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.triggerErr != nil {
		return m.triggerErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return coordinator.ErrNotFound
	}
	m.triggered = append(m.triggered, id)
	if j.Status == models.StatusPending {
		j.Status = models.StatusProcessing
	}
	return nil
}

func (m *mockJobs) RetryFailed(_ context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryErr != nil {
		return nil, m.retryErr
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, coordinator.ErrNotFound
	}
	return &models.ScrapingJob{ID: uuid.New(), Filename: j.Filename + " (retry)", TotalProfiles: 1, Status: models.StatusPending}, nil
}

func (m *mockJobs) FailureDigest(_ context.Context, id uuid.UUID) ([]models.FailureGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return nil, coordinator.ErrNotFound
	}
	return m.failures, nil
}

func (m *mockJobs) SubscribeJob(_ context.Context, id uuid.UUID, h notify.Handlers) (notify.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return nil, coordinator.ErrNotFound
	}
	m.handlers = &h
	close(m.subscribed)
	return subscriptionFunc(func() {
		m.mu.Lock()
		m.unsubscribed = true
		m.mu.Unlock()
	}), nil
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }

// --- mock ProfileReader ---

type mockProfiles struct {
	profiles map[uuid.UUID]*models.Profile
	filter   store.ProfileFilter
	err      error
}

func (m *mockProfiles) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockProfiles) ListProfiles(_ context.Context, filter store.ProfileFilter) ([]*models.Profile, int, error) {
	m.filter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	out := []*models.Profile{}
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, len(out), nil
}

// --- helpers ---

// serve routes req through a chi router so URL params resolve.
func serve(pattern, method string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error.Code
}
