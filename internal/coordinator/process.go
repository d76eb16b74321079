package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/cache"
	"github.com/kiranshivaraju/alumnitrack/internal/scraper"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const accountingTimeout = 30 * time.Second

// Trigger starts processing jobID in the background and returns immediately.
// At most one loop runs per job: a second Trigger while one is active returns
// ErrAlreadyProcessing. Triggering a terminal job is a no-op.
func (c *Coordinator) Trigger(ctx context.Context, jobID uuid.UUID) error {
	if c.baseCtx.Err() != nil {
		return ErrShuttingDown
	}

	job, err := c.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return nil
	}

	c.mu.Lock()
	if _, ok := c.running[jobID]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyProcessing, jobID)
	}
	c.running[jobID] = struct{}{}
	c.mu.Unlock()

	token := uuid.NewString()
	locked := false
	if c.cache != nil {
		ok, err := c.cache.AcquireLock(ctx, cache.JobLockKey(jobID), token, c.cfg.LockTTL)
		switch {
		case err != nil:
			slog.Warn("job lock unavailable, continuing with in-process lock", "job_id", jobID, "error", err)
		case !ok:
			c.release(jobID)
			return fmt.Errorf("%w: %s", ErrAlreadyProcessing, jobID)
		default:
			locked = true
		}
	}

	loopCtx, stopLoop := context.WithCancel(c.baseCtx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if locked {
				// the base context may already be cancelled
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := c.cache.ReleaseLock(releaseCtx, cache.JobLockKey(jobID), token); err != nil {
					slog.Warn("failed to release job lock", "job_id", jobID, "error", err)
				}
			}
			c.release(jobID)
		}()
		defer stopLoop()

		if locked {
			go c.keepLock(loopCtx, stopLoop, jobID, token)
		}
		if _, err := c.ProcessJob(loopCtx, jobID); err != nil {
			slog.Error("job processing stopped", "job_id", jobID, "error", err)
		}
	}()
	return nil
}

// keepLock extends the job lock every third of its TTL until ctx ends. If the
// lock was lost to another instance the loop is stopped.
func (c *Coordinator) keepLock(ctx context.Context, stopLoop context.CancelFunc, jobID uuid.UUID, token string) {
	ticker := time.NewTicker(c.cfg.LockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := c.cache.RefreshLock(ctx, cache.JobLockKey(jobID), token, c.cfg.LockTTL)
			switch {
			case err != nil:
				slog.Warn("failed to refresh job lock", "job_id", jobID, "error", err)
			case !ok && ctx.Err() == nil:
				slog.Error("job lock lost, stopping processing", "job_id", jobID)
				stopLoop()
				return
			}
		}
	}
}

func (c *Coordinator) release(jobID uuid.UUID) {
	c.mu.Lock()
	delete(c.running, jobID)
	c.mu.Unlock()
}

// ProcessJob drains the pending items of a job in priority order, one at a
// time, and marks the job completed once nothing is pending. The caller must
// make sure no other loop runs for the same job; Trigger does that.
//
// Scrape failures are recorded per item and never abort the loop. If ctx is
// cancelled the loop stops between items, remaining items stay pending and the
// job stays processing so it can be resumed.
func (c *Coordinator) ProcessJob(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error) {
	job, err := c.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return job, nil
	}

	logger := slog.With("job_id", jobID)

	switch job.Status {
	case models.StatusPending:
		job, err = c.transition(ctx, jobID, models.StatusProcessing)
		if err != nil {
			return nil, err
		}
		logger.Info("job processing started", "total_profiles", job.TotalProfiles)
	case models.StatusProcessing:
		n, err := c.store.RequeueProcessingItems(ctx, jobID)
		if err != nil {
			return job, fmt.Errorf("%w: requeueing interrupted items: %v", ErrPersistence, err)
		}
		logger.Info("job processing resumed", "requeued_items", n, "processed_profiles", job.ProcessedProfiles)
	}

	var items []*models.QueueItem
	err = c.persist(ctx, "list pending items", func() error {
		var err error
		items, err = c.store.ListPendingItems(ctx, jobID)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return job, ctx.Err()
		}
		logger.Error("could not load pending items, failing job", "error", err)
		failed, ferr := c.transition(ctx, jobID, models.StatusFailed,
			store.WithErrorMessage(fmt.Sprintf("loading queue: %v", err)))
		if ferr != nil {
			return job, ferr
		}
		return failed, fmt.Errorf("%w: loading pending items: %v", ErrPersistence, err)
	}

	for i, item := range items {
		if i > 0 {
			if err := sleepCtx(ctx, c.cfg.ItemDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		if updated := c.processItem(ctx, item); updated != nil {
			job = updated
		}
	}

	if ctx.Err() != nil {
		logger.Info("job processing interrupted", "processed_profiles", job.ProcessedProfiles)
		return job, ctx.Err()
	}
	return c.finish(ctx, job)
}

// finish completes the job when no pending item remains.
func (c *Coordinator) finish(ctx context.Context, job *models.ScrapingJob) (*models.ScrapingJob, error) {
	var pending int
	err := c.persist(ctx, "count pending items", func() error {
		var err error
		pending, err = c.store.CountPendingItems(ctx, job.ID)
		return err
	})
	if err != nil {
		return job, fmt.Errorf("%w: counting pending items: %v", ErrPersistence, err)
	}
	if pending > 0 {
		slog.Warn("job still has pending items after pass", "job_id", job.ID, "pending", pending)
		return job, nil
	}

	done, err := c.transition(ctx, job.ID, models.StatusCompleted)
	if err != nil {
		return job, err
	}
	slog.Info("job completed",
		"job_id", done.ID,
		"successful_profiles", done.SuccessfulProfiles,
		"failed_profiles", done.FailedProfiles,
	)
	return done, nil
}

// processItem runs one queue item and returns the job snapshot after
// accounting, or nil when accounting could not be written.
func (c *Coordinator) processItem(ctx context.Context, item *models.QueueItem) *models.ScrapingJob {
	logger := slog.With("job_id", item.JobID, "item_id", item.ID, "url", item.LinkedInURL)

	err := c.persist(ctx, "mark item processing", func() error {
		return c.store.MarkItemProcessing(ctx, item.ID)
	})
	if err != nil {
		logger.Error("could not claim queue item", "error", err)
		return nil
	}

	fields, scrapeErr := c.scrape(ctx, item)
	if scrapeErr != nil && ctx.Err() != nil {
		// Shutting down: leave the item processing so a resumed run requeues it.
		return nil
	}

	// A finished scrape is recorded even if shutdown starts meanwhile.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), accountingTimeout)
	defer cancel()

	if scrapeErr == nil {
		var profile *models.Profile
		var job *models.ScrapingJob
		err := c.persist(writeCtx, "complete item", func() error {
			var err error
			profile, job, err = c.store.CompleteItem(writeCtx, item, *fields)
			return err
		})
		if err != nil {
			// The item must not stay processing once the job can complete.
			logger.Error("could not record scraped profile, failing item", "error", err)
			return c.failItem(writeCtx, logger, item, "recording profile: "+err.Error())
		}
		logger.Info("profile scraped", "profile_id", profile.ID)
		c.publishProfile(writeCtx, profile)
		c.publishJob(writeCtx, job)
		return job
	}

	logger.Warn("profile scrape failed", "error", scrapeErr)
	return c.failItem(writeCtx, logger, item, scrapeErr.Error())
}

func (c *Coordinator) failItem(ctx context.Context, logger *slog.Logger, item *models.QueueItem, msg string) *models.ScrapingJob {
	var job *models.ScrapingJob
	err := c.persist(ctx, "fail item", func() error {
		var err error
		job, err = c.store.FailItem(ctx, item, msg)
		return err
	})
	if err != nil {
		logger.Error("could not record scrape failure", "error", err)
		return nil
	}
	c.publishJob(ctx, job)
	return job
}

// scrape calls the worker under the per-item timeout. Panics and empty results
// are converted into scrape errors.
func (c *Coordinator) scrape(ctx context.Context, item *models.QueueItem) (fields *models.ProfileFields, err error) {
	itemCtx, cancel := context.WithTimeout(ctx, c.cfg.ItemTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in scrape worker", "item_id", item.ID, "panic", r)
			fields, err = nil, fmt.Errorf("%w: worker panic: %v", scraper.ErrScrape, r)
		}
	}()

	fields, err = c.worker.Scrape(itemCtx, item.LinkedInURL, item.DisplayName())
	switch {
	case err != nil && errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, fmt.Errorf("%w: no result after %s: %v", scraper.ErrTimeout, c.cfg.ItemTimeout, err)
	case err != nil:
		return nil, err
	case fields == nil:
		return nil, fmt.Errorf("%w: worker returned no profile", scraper.ErrParse)
	}
	return fields, nil
}

func (c *Coordinator) transition(ctx context.Context, jobID uuid.UUID, status string, opts ...store.JobUpdateOption) (*models.ScrapingJob, error) {
	var job *models.ScrapingJob
	err := c.persist(ctx, "update job status", func() error {
		var err error
		job, err = c.store.UpdateJobStatus(ctx, jobID, status, opts...)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: setting job %s: %v", ErrPersistence, status, err)
	}
	c.publishJob(ctx, job)
	return job, nil
}

// persist retries fn with exponential backoff. State conflicts are not retried.
func (c *Coordinator) persist(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.PersistBaseDelay
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.PersistRetries)), ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			return backoff.Permanent(err)
		}
		slog.Warn("persistence write failed, retrying", "op", op, "error", err)
		return err
	}, b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
