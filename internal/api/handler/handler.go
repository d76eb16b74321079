// Package handler implements the HTTP endpoints of the alumnitrack API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/api/response"
	"github.com/kiranshivaraju/alumnitrack/internal/coordinator"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/internal/store"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

// JobService defines the job operations the handlers depend on.
// *coordinator.Coordinator implements it.
type JobService interface {
	CreateJob(ctx context.Context, filename string, rows []models.JobRow) (*models.ScrapingJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error)
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.ScrapingJob, int, error)
	ListQueueItems(ctx context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error)
	Trigger(ctx context.Context, jobID uuid.UUID) error
	RetryFailed(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, error)
	FailureDigest(ctx context.Context, jobID uuid.UUID) ([]models.FailureGroup, error)
	SubscribeJob(ctx context.Context, jobID uuid.UUID, h notify.Handlers) (notify.Subscription, error)
}

// ProfileReader is the read side of the profile table.
type ProfileReader interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListProfiles(ctx context.Context, filter store.ProfileFilter) ([]*models.Profile, int, error)
}

var _ JobService = (*coordinator.Coordinator)(nil)

// writeJobError maps coordinator sentinels onto the error envelope.
func writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coordinator.ErrValidation):
		response.ValidationError(w, err.Error())
	case errors.Is(err, coordinator.ErrNotFound):
		response.NotFound(w, "Job not found")
	case errors.Is(err, coordinator.ErrAlreadyProcessing):
		response.Error(w, http.StatusConflict, "ALREADY_PROCESSING",
			"The job is already being processed", nil)
	case errors.Is(err, coordinator.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
			"The server is shutting down", nil)
	default:
		slog.Error("job request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalError(w)
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads page and limit, rejecting non-numeric values.
func pageParams(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	page, limit = store.NormalizePage(page, limit)
	return page, limit, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

// splitList splits a comma separated query value and drops blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
