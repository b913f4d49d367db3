package queue

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/listing-scraper/pkg/config"
	"github.com/Sriram-PR/listing-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// liveQueue returns a queue on a unique key of the server named by
// LISTING_SCRAPER_TEST_REDIS, skipping the test when it is unset.
func liveQueue(t *testing.T) *RedisQueue {
	t.Helper()
	addr := os.Getenv("LISTING_SCRAPER_TEST_REDIS")
	if addr == "" {
		t.Skip("LISTING_SCRAPER_TEST_REDIS not set")
	}
	ctx := context.Background()
	q, err := NewRedisQueue(ctx, config.QueueConfig{
		RedisAddr:   addr,
		Key:         "listing-scraper:test:" + uuid.NewString(),
		PollTimeout: time.Second,
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		q.client.Del(context.Background(), q.key)
		q.Close()
	})
	return q
}

func unreachableQueue() *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewRedisQueueFromClient(client, "k", 100*time.Millisecond, testLogger())
}

func TestNewRedisQueue_Unreachable(t *testing.T) {
	_, err := NewRedisQueue(context.Background(), config.QueueConfig{
		RedisAddr: "127.0.0.1:1",
		Key:       "k",
	}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrQueue)
}

func TestRedisQueue_ErrorsWrapErrQueue(t *testing.T) {
	q := unreachableQueue()
	defer q.Close()
	ctx := context.Background()

	assert.ErrorIs(t, q.Push(ctx, "job-1"), utils.ErrQueue)
	_, err := q.Len(ctx)
	assert.ErrorIs(t, err, utils.ErrQueue)
	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, utils.ErrQueue)
}

func TestRedisQueue_DefaultPollTimeout(t *testing.T) {
	q := NewRedisQueueFromClient(redis.NewClient(&redis.Options{}), "k", 0, testLogger())
	defer q.Close()
	assert.Equal(t, 5*time.Second, q.pollTimeout)
}

func TestRedisQueue_FIFO(t *testing.T) {
	q := liveQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, id))
	}
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRedisQueue_PopEmpty(t *testing.T) {
	q := liveQueue(t)

	start := time.Now()
	_, err := q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond, "Pop should block for the poll timeout")
}

func TestRedisQueue_PopCancelled(t *testing.T) {
	q := liveQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
