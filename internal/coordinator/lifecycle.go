package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// ResumeInterrupted re-triggers jobs left unfinished by a previous run.
// Processing jobs are always resumed; pending jobs only when AutoStart is on.
// It returns the number of jobs started.
func (c *Coordinator) ResumeInterrupted(ctx context.Context) (int, error) {
	statuses := []string{models.StatusProcessing}
	if c.cfg.AutoStart {
		statuses = append(statuses, models.StatusPending)
	}

	var jobs []*models.ScrapingJob
	for page := 1; ; page++ {
		batch, total, err := c.store.ListJobs(ctx, store.JobFilter{Statuses: statuses, Page: page, Limit: 100})
		if err != nil {
			return 0, fmt.Errorf("%w: listing unfinished jobs: %v", ErrPersistence, err)
		}
		jobs = append(jobs, batch...)
		if len(batch) == 0 || len(jobs) >= total {
			break
		}
	}

	started := 0
	for _, job := range jobs {
		err := c.Trigger(ctx, job.ID)
		switch {
		case err == nil:
			started++
		case errors.Is(err, ErrAlreadyProcessing):
			slog.Info("job already running elsewhere, not resuming", "job_id", job.ID)
		default:
			slog.Error("failed to resume job", "job_id", job.ID, "error", err)
		}
	}
	if started > 0 {
		slog.Info("resumed interrupted jobs", "count", started)
	}
	return started, nil
}

// Shutdown stops all processing loops between items and waits for them to
// return, or for ctx to expire.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
