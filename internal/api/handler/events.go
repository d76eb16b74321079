package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/alumnitrack/internal/api/response"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const defaultHeartbeat = 15 * time.Second

// SSE event names.
const (
	sseProgress = "progress"
	sseProfile  = "profile"
	sseError    = "error"
)

type sseEvent struct {
	name string
	data any
}

// NewJobEventsHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/events. It streams the current snapshot followed by
// every progress and profile event as Server-Sent Events, and ends the stream
// once the job is terminal or the client goes away.
func NewJobEventsHandler(jobs JobService, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathUUID(r, "jobID")
		if !ok {
			response.ValidationError(w, "jobID must be a valid UUID")
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			response.Error(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED",
				"Streaming is not supported by this connection", nil)
			return
		}

		ctx := r.Context()
		events := make(chan sseEvent, 16)
		send := func(ev sseEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		// Subscribe before reading the snapshot so nothing in between is lost.
		sub, err := jobs.SubscribeJob(ctx, jobID, notify.Handlers{
			OnProgress:   func(job *models.ScrapingJob) { send(sseEvent{sseProgress, job}) },
			OnNewProfile: func(p *models.Profile) { send(sseEvent{sseProfile, p}) },
			OnError: func(err error) {
				send(sseEvent{sseError, map[string]string{"message": err.Error()}})
			},
		})
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		defer sub.Unsubscribe()

		job, err := jobs.GetJob(ctx, jobID)
		if err != nil {
			writeJobError(w, r, err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeSSE(w, sseEvent{sseProgress, job}); err != nil {
			return
		}
		flusher.Flush()
		if job.IsTerminal() {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev := <-events:
				if err := writeSSE(w, ev); err != nil {
					slog.Debug("event stream closed", "job_id", jobID, "error", err)
					return
				}
				flusher.Flush()
				if j, ok := ev.data.(*models.ScrapingJob); ok && j.IsTerminal() {
					return
				}
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, ev sseEvent) error {
	b, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, b)
	return err
}
