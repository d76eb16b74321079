package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJobWithItems(ctx context.Context, job *models.ScrapingJob, items []*models.QueueItem) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.ScrapingJob, int, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) (*models.ScrapingJob, error)

	ListPendingItems(ctx context.Context, jobID uuid.UUID) ([]*models.QueueItem, error)
	CountPendingItems(ctx context.Context, jobID uuid.UUID) (int, error)
	ListQueueItems(ctx context.Context, jobID uuid.UUID, status string) ([]*models.QueueItem, error)
	MarkItemProcessing(ctx context.Context, itemID uuid.UUID) error
	RequeueProcessingItems(ctx context.Context, jobID uuid.UUID) (int, error)
	CompleteItem(ctx context.Context, item *models.QueueItem, fields models.ProfileFields) (*models.Profile, *models.ScrapingJob, error)
	FailItem(ctx context.Context, item *models.QueueItem, errMsg string) (*models.ScrapingJob, error)

	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]*models.Profile, int, error)
}

type JobFilter struct {
	Statuses []string
	Page     int
	Limit    int
}

type ProfileFilter struct {
	Query    string
	Industry string
	Location string
	Company  string
	JobID    *uuid.UUID
	Page     int
	Limit    int
}

// JobUpdate holds the optional fields of a status update.
type JobUpdate struct {
	ErrorMessage *string
}

type JobUpdateOption func(*JobUpdate)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}

// ApplyJobUpdateOptions resolves opts into a JobUpdate.
func ApplyJobUpdateOptions(opts ...JobUpdateOption) JobUpdate {
	var u JobUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// NormalizePage clamps pagination input to 1 <= page and 1 <= limit <= 100.
func NormalizePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return page, limit
}
