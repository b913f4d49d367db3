package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
	"github.com/Sriram-PR/listing-scraper/pkg/metrics"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

// ErrEmpty is returned by Pop when no job id arrived within the poll timeout
var ErrEmpty = errors.New("queue empty")

// JobQueue hands job ids from the process that created a job to the worker that runs it
type JobQueue interface {
	Push(ctx context.Context, jobID string) error
	Pop(ctx context.Context) (string, error)
	Len(ctx context.Context) (int64, error)
	Close() error
}

// RedisQueue is a FIFO of job ids on a Redis list: LPUSH in, BRPOP out
type RedisQueue struct {
	client      *redis.Client
	key         string
	pollTimeout time.Duration
	log         *logrus.Entry
}

// NewRedisQueue connects to the Redis server named in cfg and pings it
func NewRedisQueue(ctx context.Context, cfg config.QueueConfig, log *logrus.Entry) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", utils.ErrQueue, cfg.RedisAddr, err)
	}
	log.Infof("Connected to Redis at %s (key %s)", cfg.RedisAddr, cfg.Key)
	return NewRedisQueueFromClient(client, cfg.Key, cfg.PollTimeout, log), nil
}

// NewRedisQueueFromClient wraps an existing client without checking connectivity
func NewRedisQueueFromClient(client *redis.Client, key string, pollTimeout time.Duration, log *logrus.Entry) *RedisQueue {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &RedisQueue{client: client, key: key, pollTimeout: pollTimeout, log: log}
}

// Push enqueues jobID
func (q *RedisQueue) Push(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("%w: push %s: %w", utils.ErrQueue, jobID, err)
	}
	q.log.WithField("job_id", jobID).Debug("Job queued")
	q.observeDepth(ctx)
	return nil
}

// Pop blocks for up to the poll timeout and returns the oldest job id, or ErrEmpty
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: pop: %w", utils.ErrQueue, err)
	}
	q.observeDepth(ctx)
	// BRPOP answers [key, value]
	if len(res) != 2 {
		return "", fmt.Errorf("%w: unexpected BRPOP reply %v", utils.ErrQueue, res)
	}
	return res[1], nil
}

// Len returns the number of queued job ids
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen: %w", utils.ErrQueue, err)
	}
	return n, nil
}

// Close releases the client's connections
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) observeDepth(ctx context.Context) {
	if n, err := q.client.LLen(ctx, q.key).Result(); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
