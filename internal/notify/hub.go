package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const defaultBufferSize = 64

// Hub is an in-process Notifier. Every subscription drains its own buffered
// channel on a dedicated goroutine, so a slow callback never blocks publishers;
// when the buffer is full the event is dropped and OnError receives ErrSlowSubscriber.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*hubSub]struct{}
	buffer int
}

// NewHub creates a Hub whose subscriptions buffer up to bufferSize events.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{subs: make(map[uuid.UUID]map[*hubSub]struct{}), buffer: bufferSize}
}

type hubSub struct {
	hub      *Hub
	jobID    uuid.UUID
	h        Handlers
	events   chan Event
	overflow chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (h *Hub) Subscribe(ctx context.Context, jobID uuid.UUID, handlers Handlers) (Subscription, error) {
	s := &hubSub{
		hub:      h,
		jobID:    jobID,
		h:        handlers,
		events:   make(chan Event, h.buffer),
		overflow: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[*hubSub]struct{})
	}
	h.subs[jobID][s] = struct{}{}
	h.mu.Unlock()

	go s.run(ctx)
	return s, nil
}

func (h *Hub) PublishJob(_ context.Context, job *models.ScrapingJob) error {
	ev, err := NewJobEvent(job)
	if err != nil {
		return err
	}
	h.publish(ev)
	return nil
}

func (h *Hub) PublishProfile(_ context.Context, p *models.Profile) error {
	ev, err := NewProfileEvent(p)
	if err != nil {
		return err
	}
	h.publish(ev)
	return nil
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.JobID] {
		select {
		case s.events <- ev:
		default:
			// drop and flag the subscriber
			select {
			case s.overflow <- struct{}{}:
			default:
			}
		}
	}
}

// subscriberCount is used by tests to observe unsubscription.
func (h *Hub) subscriberCount(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (s *hubSub) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case ev := <-s.events:
			// select picks randomly among ready cases; buffered events must
			// not reach the callbacks once Unsubscribe has returned.
			if closed(s.done) {
				return
			}
			s.h.dispatch(ev)
		case <-s.overflow:
			if closed(s.done) {
				return
			}
			s.h.fail(ErrSlowSubscriber)
		}
	}
}

// closed reports whether done has been closed, without blocking.
func closed(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (s *hubSub) Unsubscribe() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs[s.jobID], s)
		if len(s.hub.subs[s.jobID]) == 0 {
			delete(s.hub.subs, s.jobID)
		}
		s.hub.mu.Unlock()
		close(s.done)
	})
}

var _ Notifier = (*Hub)(nil)
