package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/redis/go-redis/v9"
)

// RedisNotifier fans events out through Redis pub/sub so subscribers attached to
// any server instance see progress from the instance that runs the job.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a RedisNotifier on an existing client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// ChannelName is the pub/sub channel carrying every event for a job.
func ChannelName(jobID uuid.UUID) string {
	return fmt.Sprintf("alumnitrack:events:job:%s", jobID)
}

func (n *RedisNotifier) PublishJob(ctx context.Context, job *models.ScrapingJob) error {
	ev, err := NewJobEvent(job)
	if err != nil {
		return err
	}
	return n.publish(ctx, ev)
}

func (n *RedisNotifier) PublishProfile(ctx context.Context, p *models.Profile) error {
	ev, err := NewProfileEvent(p)
	if err != nil {
		return err
	}
	return n.publish(ctx, ev)
}

func (n *RedisNotifier) publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.client.Publish(ctx, ChannelName(ev.JobID), b).Err(); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrNotification, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, then delivers events
// on a background goroutine.
func (n *RedisNotifier) Subscribe(ctx context.Context, jobID uuid.UUID, h Handlers) (Subscription, error) {
	ps := n.client.Subscribe(ctx, ChannelName(jobID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe: %v", ErrNotification, err)
	}

	s := &redisSub{ps: ps, h: h, done: make(chan struct{})}
	go s.run(ctx)
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	h    Handlers
	done chan struct{}
	once sync.Once
}

func (s *redisSub) run(ctx context.Context) {
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case msg, ok := <-msgs:
			if !ok {
				if !closed(s.done) {
					s.h.fail(fmt.Errorf("%w: subscription closed", ErrNotification))
				}
				return
			}
			if closed(s.done) {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.h.fail(fmt.Errorf("%w: decode event: %v", ErrNotification, err))
				continue
			}
			s.h.dispatch(ev)
		}
	}
}

func (s *redisSub) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		_ = s.ps.Close()
	})
}

var _ Notifier = (*RedisNotifier)(nil)
