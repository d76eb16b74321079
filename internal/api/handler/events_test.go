package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseFrame struct {
	event string
	data  string
}

func parseSSE(body string) []sseFrame {
	var frames []sseFrame
	var cur sseFrame
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		case line == "" && cur.event != "":
			frames = append(frames, cur)
			cur = sseFrame{}
		}
	}
	return frames
}

func eventsRouter(jobs JobService, heartbeat time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}/events", NewJobEventsHandler(jobs, heartbeat))
	return r
}

func TestJobEvents_StreamsUntilTerminal(t *testing.T) {
	jobs := newMockJobs()
	j := jobs.add(models.StatusProcessing)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+j.ID.String()+"/events", nil)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		eventsRouter(jobs, time.Hour).ServeHTTP(w, req)
	}()

	select {
	case <-jobs.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never subscribed")
	}
	h := jobs.handlers

	jobID := j.ID
	h.OnNewProfile(&models.Profile{ID: uuid.New(), LinkedInURL: "https://linkedin.com/in/x", Name: "X", ScrapingJobID: &jobID})
	h.OnError(errors.New("subscriber too slow"))
	final := *j
	final.Status = models.StatusCompleted
	h.OnProgress(&final)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after terminal snapshot")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	frames := parseSSE(w.Body.String())
	require.Len(t, frames, 4, w.Body.String())

	assert.Equal(t, "progress", frames[0].event)
	var first models.ScrapingJob
	require.NoError(t, json.Unmarshal([]byte(frames[0].data), &first))
	assert.Equal(t, models.StatusProcessing, first.Status)

	assert.Equal(t, "profile", frames[1].event)
	assert.Contains(t, frames[1].data, `"linkedin_url":"https://linkedin.com/in/x"`)

	assert.Equal(t, "error", frames[2].event)
	assert.Contains(t, frames[2].data, "subscriber too slow")

	assert.Equal(t, "progress", frames[3].event)
	assert.Contains(t, frames[3].data, `"status":"completed"`)

	jobs.mu.Lock()
	assert.True(t, jobs.unsubscribed)
	jobs.mu.Unlock()
}

func TestJobEvents_TerminalJobEndsImmediately(t *testing.T) {
	jobs := newMockJobs()
	j := jobs.add(models.StatusCompleted)

	w := httptest.NewRecorder()
	eventsRouter(jobs, time.Hour).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+j.ID.String()+"/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	frames := parseSSE(w.Body.String())
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0].data, `"status":"completed"`)
}

func TestJobEvents_ClientDisconnect(t *testing.T) {
	jobs := newMockJobs()
	j := jobs.add(models.StatusProcessing)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+j.ID.String()+"/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		eventsRouter(jobs, 10*time.Millisecond).ServeHTTP(w, req)
	}()

	<-jobs.subscribed
	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler kept running after client went away")
	}
	assert.Contains(t, w.Body.String(), ": keep-alive")
}

func TestJobEvents_UnknownJob(t *testing.T) {
	jobs := newMockJobs()
	w := httptest.NewRecorder()
	eventsRouter(jobs, time.Hour).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/events", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESOURCE_NOT_FOUND", errCode(t, w))
}
