package models

import (
	"time"

	"github.com/google/uuid"
)

// Status values shared by scraping jobs and queue items.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// IsValidStatus reports whether status is one of the known job/queue statuses.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminalStatus reports whether status is one a job or queue item never leaves.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ScrapingJob is one CSV upload worth of scraping work. The API returns it on
// POST /api/v1/jobs; clients follow progress via GET /api/v1/jobs/{id} or the
// events stream until the status is terminal.
type ScrapingJob struct {
	ID                 uuid.UUID  `db:"id"                  json:"id"`
	Filename           string     `db:"filename"            json:"filename"`
	TotalProfiles      int        `db:"total_profiles"      json:"total_profiles"`
	ProcessedProfiles  int        `db:"processed_profiles"  json:"processed_profiles"`
	SuccessfulProfiles int        `db:"successful_profiles" json:"successful_profiles"`
	FailedProfiles     int        `db:"failed_profiles"     json:"failed_profiles"`
	Status             string     `db:"status"              json:"status"`
	ErrorMessage       *string    `db:"error_message"       json:"error_message,omitempty"`
	StartedAt          *time.Time `db:"started_at"          json:"started_at,omitempty"`
	CompletedAt        *time.Time `db:"completed_at"        json:"completed_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"          json:"updated_at"`
}

// IsTerminal reports whether the job has reached completed, failed or cancelled.
func (j *ScrapingJob) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// JobRow is one accepted input row of an upload.
type JobRow struct {
	LinkedInURL string `json:"linkedin_url"`
	Name        string `json:"name,omitempty"`
}
