package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueItem is a single URL waiting to be scraped for a job.
// Priority is the row index of the upload and doubles as the processing order.
type QueueItem struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	JobID        uuid.UUID       `db:"job_id"        json:"job_id"`
	LinkedInURL  string          `db:"linkedin_url"  json:"linkedin_url"`
	Name         *string         `db:"name"          json:"name,omitempty"`
	Status       string          `db:"status"        json:"status"`
	Priority     int             `db:"priority"      json:"priority"`
	Attempts     int             `db:"attempts"      json:"attempts"`
	MaxAttempts  int             `db:"max_attempts"  json:"max_attempts"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	ScheduledAt  time.Time       `db:"scheduled_at"  json:"scheduled_at"`
	StartedAt    *time.Time      `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	ScrapedData  json.RawMessage `db:"scraped_data"  json:"scraped_data,omitempty"`
}

// DisplayName returns the name hint or an empty string.
func (q *QueueItem) DisplayName() string {
	if q.Name == nil {
		return ""
	}
	return *q.Name
}

// FailureGroup counts the failed items of a job that share one normalized
// error message.
type FailureGroup struct {
	Fingerprint   string     `json:"fingerprint"`
	Reason        string     `json:"reason"`
	Count         int        `json:"count"`
	SampleMessage string     `json:"sample_message"`
	SampleURLs    []string   `json:"sample_urls"`
	FirstFailedAt *time.Time `json:"first_failed_at,omitempty"`
	LastFailedAt  *time.Time `json:"last_failed_at,omitempty"`
}
