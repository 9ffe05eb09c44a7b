package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core"
)

// requires a Redis server, e.g. TEST_REDIS_ADDR=localhost:6379
func newTestRedisQueue(t *testing.T) *RedisQueue {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	conf := core.NewTestConfig()
	conf.Queue.RedisAddr = addr
	conf.Queue.Key = "remindme:test:" + uuid.NewString()
	conf.Queue.VisibilityTimeout = 50 * time.Millisecond

	ctx := context.Background()
	client, err := NewRedisClient(ctx, conf)
	require.NoError(t, err)
	q := NewRedisQueue(client, conf)
	t.Cleanup(func() {
		_ = client.Del(ctx, q.pending, q.processing, q.inflight).Err()
		_ = q.Close()
	})
	return q
}

func TestRedisQueue(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	first := core.NewTask(core.TaskScheduleApproved, 1)
	second := core.NewTask(core.TaskScheduleApproved, 2)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "FIFO")
	assert.NotEmpty(t, got.Receipt)
	require.NoError(t, q.Ack(ctx, got))

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	// not acked: handed out again once expired
	time.Sleep(100 * time.Millisecond)
	n, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.ID)
	require.NoError(t, q.Ack(ctx, again))

	time.Sleep(100 * time.Millisecond)
	n, err = q.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "acked tasks are never requeued")

	pending, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRedisQueue_DequeueCanceled(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.Error(t, err)
}

func TestRedisQueue_ExtendKeepsTaskInFlight(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, core.NewTask(core.TaskScheduleApproved, 1)))
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)

	// a handler running past the visibility timeout
	for i := 0; i < 4; i++ {
		time.Sleep(q.ExtendInterval())
		require.NoError(t, q.Extend(ctx, got))
	}
	n, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "extended tasks are not handed out again")

	require.NoError(t, q.Ack(ctx, got))
	require.NoError(t, q.Extend(ctx, got))
	inflight, err := q.client.ZCard(ctx, q.inflight).Result()
	require.NoError(t, err)
	assert.Zero(t, inflight, "extending an acked task does not bring it back")
}

func TestRedisQueue_RequeuesUnmarkedProcessingTasks(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx := context.Background()

	task := core.NewTask(core.TaskScheduleApproved, 1)
	require.NoError(t, q.Enqueue(ctx, task))

	// popped into the processing list, but never marked in flight
	payload, err := q.client.RPopLPush(ctx, q.pending, q.processing).Result()
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	n, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a consumer may still be marking it")

	time.Sleep(100 * time.Millisecond)
	n, err = q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	require.NoError(t, q.Ack(ctx, got))
}

func TestRedisQueue_DequeueMarksTaskWhenCanceled(t *testing.T) {
	q := newTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	task := core.NewTask(core.TaskScheduleApproved, 1)
	require.NoError(t, q.Enqueue(ctx, task))
	cancel()

	// the pop itself may or may not notice the cancellation
	got, err := q.Dequeue(ctx)
	bg := context.Background()
	if err != nil {
		pending, err := q.Len(bg)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending, "left pending")
		return
	}
	assert.Equal(t, task.ID, got.ID)
	score, err := q.client.ZScore(bg, q.inflight, got.Receipt).Result()
	require.NoError(t, err)
	assert.Greater(t, score, float64(time.Now().UnixMilli()))
}
