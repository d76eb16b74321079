// Package coordinator owns the lifecycle of scraping jobs: it creates a job and
// its queue, drains the queue one item at a time through a scrape worker, and
// publishes every state change to subscribers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/analysis"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/internal/scraper"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrPersistence       = errors.New("persistence failure")
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyProcessing = errors.New("job is already being processed")
	ErrShuttingDown      = errors.New("coordinator is shutting down")
)

// JobStore is the subset of store.Store the coordinator depends on.
type JobStore interface {
	CreateJobWithItems(ctx context.Context, job *models.ScrapingJob, items []*models.QueueItem) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.ScrapingJob, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) (*models.ScrapingJob, error)
	ListPendingItems(ctx context.Context, jobID uuid.UUID) ([]*models.QueueItem, error)
	CountPendingItems(ctx context.Context, jobID uuid.UUID) (int, error)
	ListQueueItems(ctx context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error)
	MarkItemProcessing(ctx context.Context, itemID uuid.UUID) error
	RequeueProcessingItems(ctx context.Context, jobID uuid.UUID) (int, error)
	CompleteItem(ctx context.Context, item *models.QueueItem, fields models.ProfileFields) (*models.Profile, *models.ScrapingJob, error)
	FailItem(ctx context.Context, item *models.QueueItem, errMsg string) (*models.ScrapingJob, error)
}

// JobCache holds job snapshots and the per-job processing lock.
type JobCache interface {
	SetJobSnapshot(ctx context.Context, job *models.ScrapingJob, ttl time.Duration) error
	GetJobSnapshot(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, bool, error)
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

// Config tunes the processing loop.
type Config struct {
	ItemDelay   time.Duration
	ItemTimeout time.Duration
	MaxAttempts int
	AutoStart   bool
	LockTTL     time.Duration
	SnapshotTTL time.Duration

	// PersistRetries bounds how often an accounting write is retried.
	PersistRetries   int
	PersistBaseDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 6 * time.Hour
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 30 * time.Minute
	}
	if c.PersistRetries <= 0 {
		c.PersistRetries = 3
	}
	if c.PersistBaseDelay <= 0 {
		c.PersistBaseDelay = 200 * time.Millisecond
	}
}

// Coordinator is safe for concurrent use. Create one per process with New and
// pass it to whoever needs job operations.
type Coordinator struct {
	store    JobStore
	cache    JobCache
	notifier notify.Notifier
	worker   scraper.Worker
	cfg      Config

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
}

// New creates a Coordinator. cache may be nil, in which case the processing
// lock is only held in-process and GetJob always reads the store.
func New(st JobStore, cache JobCache, notifier notify.Notifier, worker scraper.Worker, cfg Config) *Coordinator {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:    st,
		cache:    cache,
		notifier: notifier,
		worker:   worker,
		cfg:      cfg,
		baseCtx:  ctx,
		cancel:   cancel,
		running:  make(map[uuid.UUID]struct{}),
	}
}

// CreateJob validates rows and persists the job with one queue item per row in
// a single transaction. Row order becomes processing order.
func (c *Coordinator) CreateJob(ctx context.Context, filename string, rows []models.JobRow) (*models.ScrapingJob, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: at least one row is required", ErrValidation)
	}
	for i, r := range rows {
		if strings.TrimSpace(r.LinkedInURL) == "" {
			return nil, fmt.Errorf("%w: row %d has an empty linkedin_url", ErrValidation, i)
		}
	}

	now := time.Now().UTC()
	job := &models.ScrapingJob{
		ID:            uuid.New(),
		Filename:      filename,
		TotalProfiles: len(rows),
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := make([]*models.QueueItem, 0, len(rows))
	for i, r := range rows {
		item := &models.QueueItem{
			ID:          uuid.New(),
			JobID:       job.ID,
			LinkedInURL: strings.TrimSpace(r.LinkedInURL),
			Status:      models.StatusPending,
			Priority:    i,
			MaxAttempts: c.cfg.MaxAttempts,
			ScheduledAt: now,
		}
		if name := strings.TrimSpace(r.Name); name != "" {
			item.Name = &name
		}
		items = append(items, item)
	}

	if err := c.store.CreateJobWithItems(ctx, job, items); err != nil {
		return nil, fmt.Errorf("%w: creating job: %v", ErrPersistence, err)
	}

	slog.Info("scraping job created", "job_id", job.ID, "filename", filename, "total_profiles", job.TotalProfiles)
	c.publishJob(ctx, job)

	if c.cfg.AutoStart {
		if err := c.Trigger(ctx, job.ID); err != nil {
			slog.Error("failed to start job", "job_id", job.ID, "error", err)
		}
	}
	return job, nil
}

// GetJob returns the current job snapshot, preferring the cache.
func (c *Coordinator) GetJob(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error) {
	if c.cache != nil {
		job, found, err := c.cache.GetJobSnapshot(ctx, jobID)
		if err != nil {
			slog.Warn("job snapshot cache read failed", "job_id", jobID, "error", err)
		}
		if found {
			return job, nil
		}
	}

	job, err := c.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.cacheJob(ctx, job)
	return job, nil
}

// ListJobs returns jobs newest first with the total matching count.
func (c *Coordinator) ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.ScrapingJob, int, error) {
	for _, s := range filter.Statuses {
		if !models.IsValidStatus(s) {
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, s)
		}
	}
	jobs, total, err := c.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing jobs: %v", ErrPersistence, err)
	}
	return jobs, total, nil
}

// ListQueueItems returns a job's items in processing order. An empty status
// returns all items.
func (c *Coordinator) ListQueueItems(ctx context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error) {
	if status != "" && !models.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if _, err := c.loadJob(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := c.store.ListQueueItems(ctx, jobID, status)
	if err != nil {
		return nil, fmt.Errorf("%w: listing queue items: %v", ErrPersistence, err)
	}
	return items, nil
}

// FailureDigest groups the failed items of a job by normalized error message.
func (c *Coordinator) FailureDigest(ctx context.Context, jobID uuid.UUID) ([]models.FailureGroup, error) {
	failed, err := c.ListQueueItems(ctx, jobID, models.StatusFailed)
	if err != nil {
		return nil, err
	}
	return analysis.GroupFailures(failed), nil
}

// SubscribeJob registers handlers for progress and profile events of one job.
func (c *Coordinator) SubscribeJob(ctx context.Context, jobID uuid.UUID, h notify.Handlers) (notify.Subscription, error) {
	if _, err := c.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return c.notifier.Subscribe(ctx, jobID, h)
}

// RetryFailed submits the failed URLs of a finished job as a new job. The
// original job is left untouched.
func (c *Coordinator) RetryFailed(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error) {
	job, err := c.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s is still %s", ErrValidation, jobID, job.Status)
	}

	failed, err := c.store.ListQueueItems(ctx, jobID, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("%w: listing failed items: %v", ErrPersistence, err)
	}
	if len(failed) == 0 {
		return nil, fmt.Errorf("%w: job %s has no failed items", ErrValidation, jobID)
	}

	rows := make([]models.JobRow, 0, len(failed))
	for _, it := range failed {
		rows = append(rows, models.JobRow{LinkedInURL: it.LinkedInURL, Name: it.DisplayName()})
	}
	return c.CreateJob(ctx, retryFilename(job.Filename), rows)
}

func retryFilename(name string) string {
	if strings.HasSuffix(name, " (retry)") {
		return name
	}
	return name + " (retry)"
}

func (c *Coordinator) loadJob(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading job: %v", ErrPersistence, err)
	}
	return job, nil
}

func (c *Coordinator) cacheJob(ctx context.Context, job *models.ScrapingJob) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJobSnapshot(ctx, job, c.cfg.SnapshotTTL); err != nil {
		slog.Warn("job snapshot cache write failed", "job_id", job.ID, "error", err)
	}
}

// publishJob refreshes the cached snapshot and notifies subscribers.
func (c *Coordinator) publishJob(ctx context.Context, job *models.ScrapingJob) {
	c.cacheJob(ctx, job)
	if err := c.notifier.PublishJob(ctx, job); err != nil {
		slog.Warn("job progress notification failed", "job_id", job.ID, "error", err)
	}
}

func (c *Coordinator) publishProfile(ctx context.Context, p *models.Profile) {
	if err := c.notifier.PublishProfile(ctx, p); err != nil {
		slog.Warn("profile notification failed", "profile_id", p.ID, "error", err)
	}
}
