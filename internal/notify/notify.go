// Package notify pushes job progress and profile updates to subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

var (
	ErrNotification   = errors.New("notification channel failure")
	ErrSlowSubscriber = fmt.Errorf("%w: subscriber too slow, events dropped", ErrNotification)
)

// Event types carried in Event.Type.
const (
	EventJobProgress     = "job.progress"
	EventProfileUpserted = "profile.upserted"
)

const eventVersion = 1

// Event is the envelope sent over every transport.
type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	JobID   uuid.UUID       `json:"job_id"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewJobEvent wraps a full job snapshot.
func NewJobEvent(job *models.ScrapingJob) (Event, error) {
	return newEvent(EventJobProgress, job.ID, job)
}

// NewProfileEvent wraps a full profile snapshot. Profiles without a job are rejected.
func NewProfileEvent(p *models.Profile) (Event, error) {
	if p.ScrapingJobID == nil {
		return Event{}, fmt.Errorf("profile %s has no scraping job", p.ID)
	}
	return newEvent(EventProfileUpserted, *p.ScrapingJobID, p)
}

func newEvent(typ string, jobID uuid.UUID, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", typ, err)
	}
	return Event{Type: typ, Version: eventVersion, At: time.Now().UTC(), JobID: jobID, Data: b}, nil
}

// Handlers are the callbacks of one subscription. Nil callbacks are skipped.
// OnError only reports transport problems; per-item scrape failures show up in
// the job counters delivered to OnProgress.
type Handlers struct {
	OnProgress   func(job *models.ScrapingJob)
	OnNewProfile func(profile *models.Profile)
	OnError      func(err error)
}

func (h Handlers) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// dispatch decodes an event and hands it to the matching callback.
func (h Handlers) dispatch(ev Event) {
	switch ev.Type {
	case EventJobProgress:
		if h.OnProgress == nil {
			return
		}
		var job models.ScrapingJob
		if err := json.Unmarshal(ev.Data, &job); err != nil {
			h.fail(fmt.Errorf("%w: decode job event: %v", ErrNotification, err))
			return
		}
		h.OnProgress(&job)
	case EventProfileUpserted:
		if h.OnNewProfile == nil {
			return
		}
		var p models.Profile
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			h.fail(fmt.Errorf("%w: decode profile event: %v", ErrNotification, err))
			return
		}
		h.OnNewProfile(&p)
	}
}

// Subscription is a handle on a registered subscriber. Unsubscribe may be called
// any number of times.
type Subscription interface {
	Unsubscribe()
}

// Publisher is the write side used by the coordinator.
type Publisher interface {
	PublishJob(ctx context.Context, job *models.ScrapingJob) error
	PublishProfile(ctx context.Context, profile *models.Profile) error
}

// Notifier is a Publisher that also accepts per-job subscriptions.
// Subscriptions end when Unsubscribe is called or ctx is cancelled.
type Notifier interface {
	Publisher
	Subscribe(ctx context.Context, jobID uuid.UUID, h Handlers) (Subscription, error)
}
