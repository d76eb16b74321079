package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/internal/notify"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisNotifier_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	n := notify.NewRedisNotifier(setupRedis(t))
	ctx := context.Background()
	jobID := uuid.New()

	var mu sync.Mutex
	var jobs []*models.ScrapingJob
	var profiles []*models.Profile

	sub, err := n.Subscribe(ctx, jobID, notify.Handlers{
		OnProgress: func(j *models.ScrapingJob) {
			mu.Lock()
			jobs = append(jobs, j)
			mu.Unlock()
		},
		OnNewProfile: func(p *models.Profile) {
			mu.Lock()
			profiles = append(profiles, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	job := &models.ScrapingJob{ID: jobID, TotalProfiles: 1, ProcessedProfiles: 1, SuccessfulProfiles: 1, Status: models.StatusCompleted}
	p := &models.Profile{ID: uuid.New(), LinkedInURL: "https://linkedin.com/in/x", ScrapingJobID: &jobID}
	require.NoError(t, n.PublishProfile(ctx, p))
	require.NoError(t, n.PublishJob(ctx, job))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(jobs) == 1 && len(profiles) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.StatusCompleted, jobs[0].Status)
	assert.Equal(t, p.ID, profiles[0].ID)
}

func TestRedisNotifier_UnsubscribeStopsDelivery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	n := notify.NewRedisNotifier(setupRedis(t))
	ctx := context.Background()
	jobID := uuid.New()

	var mu sync.Mutex
	count := 0
	sub, err := n.Subscribe(ctx, jobID, notify.Handlers{
		OnProgress: func(*models.ScrapingJob) {
			mu.Lock()
			count++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, n.PublishJob(ctx, &models.ScrapingJob{ID: jobID, Status: models.StatusProcessing}))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestChannelName(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, "alumnitrack:events:job:6ba7b810-9dad-11d1-80b4-00c04fd430c8", notify.ChannelName(id))
}
