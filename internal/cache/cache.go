package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/alumnitrack/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetJobSnapshot(ctx context.Context, job *models.ScrapingJob, ttl time.Duration) error
	GetJobSnapshot(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, bool, error)
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL only if it is still held by the caller's token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// Client exposes the underlying client so the pub/sub notifier can share the connection pool.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetJobSnapshot stores the latest known state of a job for cheap polling.
func (c *RedisCache) SetJobSnapshot(ctx context.Context, job *models.ScrapingJob, ttl time.Duration) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}
	return c.client.Set(ctx, JobSnapshotKey(job.ID), b, ttl).Err()
}

func (c *RedisCache) GetJobSnapshot(ctx context.Context, jobID uuid.UUID) (*models.ScrapingJob, bool, error) {
	b, found, err := c.Get(ctx, JobSnapshotKey(jobID))
	if err != nil || !found {
		return nil, false, err
	}
	var job models.ScrapingJob
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, false, fmt.Errorf("decode job snapshot: %w", err)
	}
	return &job, true, nil
}

// AcquireLock sets key to token if the key does not exist yet.
// It reports whether the caller now holds the lock.
func (c *RedisCache) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, token, ttl).Result()
}

func (c *RedisCache) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, c.client, []string{key}, token).Err()
}

// RefreshLock resets the TTL of a lock held by token. It reports false when the
// lock expired or belongs to someone else.
func (c *RedisCache) RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, c.client, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var _ Cache = (*RedisCache)(nil)
