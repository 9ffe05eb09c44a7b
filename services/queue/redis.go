package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

// dequeue blocks at most this long per BRPOPLPUSH so that ctx cancellation is noticed
const blockTimeout = time.Second

// requeueScript moves expired in-flight payloads back to the consuming end of the pending list.
// Processing payloads without an in-flight entry (their consumer failed to mark them) get one
// expiring at ARGV[2], so they are requeued by a later run.
// KEYS: inflight zset, processing list, pending list - ARGV: now (unix ms), orphan deadline (unix ms)
var requeueScript = redis.NewScript(`
for _, item in ipairs(redis.call('LRANGE', KEYS[2], 0, -1)) do
	if not redis.call('ZSCORE', KEYS[1], item) then
		redis.call('ZADD', KEYS[1], ARGV[2], item)
	end
end
local n = 0
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, item in ipairs(items) do
	redis.call('ZREM', KEYS[1], item)
	if redis.call('LREM', KEYS[2], 1, item) > 0 then
		redis.call('RPUSH', KEYS[3], item)
		n = n + 1
	end
end
return n
`)

// NewRedisClient connects to Redis & checks the connection.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Queue.RedisAddr,
		Password: conf.Queue.RedisPassword,
		DB:       conf.Queue.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// RedisQueue is a reliable queue: a dequeued task stays in a processing list until acked,
// and is handed out again by Requeue once its visibility timeout has passed.
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
	inflight   string
	visibility time.Duration
}

var (
	_ core.TaskQueue = (*RedisQueue)(nil)
	_ Extender       = (*RedisQueue)(nil)
)

func NewRedisQueue(client *redis.Client, conf *core.Config) *RedisQueue {
	key := conf.Queue.Key
	return &RedisQueue{
		client:     client,
		pending:    key,
		processing: key + ":processing",
		inflight:   key + ":inflight",
		visibility: conf.Queue.VisibilityTimeout,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task core.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "encoding task")
	}
	if err := q.client.LPush(ctx, q.pending, payload).Err(); err != nil {
		return errors.Wrap(err, "pushing task")
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (core.Task, error) {
	for {
		payload, err := q.client.BRPopLPush(ctx, q.pending, q.processing, blockTimeout).Result()
		if err == redis.Nil {
			if ctx.Err() != nil {
				return core.Task{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return core.Task{}, ctx.Err()
			}
			return core.Task{}, errors.Wrap(err, "popping task")
		}

		// the payload is ours now even if ctx is done: it is either handed out or left for Requeue
		ctx := context.WithoutCancel(ctx)
		if err := q.client.ZAdd(ctx, q.inflight, &redis.Z{Score: q.deadline(), Member: payload}).Err(); err != nil {
			return core.Task{}, errors.Wrap(err, "marking task in flight")
		}

		var task core.Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			// poison payload: drop it
			_ = q.ack(ctx, payload)
			return core.Task{}, errors.Wrap(err, "decoding task")
		}
		task.Receipt = payload
		return task, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, task core.Task) error {
	if task.Receipt == "" {
		return errors.New("acking a task that was not dequeued")
	}
	return q.ack(ctx, task.Receipt)
}

func (q *RedisQueue) ack(ctx context.Context, payload string) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processing, 1, payload)
		pipe.ZRem(ctx, q.inflight, payload)
		return nil
	})
	return errors.Wrap(err, "acking task")
}

func (q *RedisQueue) deadline() float64 {
	return float64(time.Now().Add(q.visibility).UnixMilli())
}

// Extend pushes back the visibility deadline of a task still being processed.
// It is a no-op once the task has been acked or requeued.
func (q *RedisQueue) Extend(ctx context.Context, task core.Task) error {
	if task.Receipt == "" {
		return errors.New("extending a task that was not dequeued")
	}
	err := q.client.ZAddXX(ctx, q.inflight, &redis.Z{Score: q.deadline(), Member: task.Receipt}).Err()
	return errors.Wrap(err, "extending task")
}

// ExtendInterval is how often in-flight tasks should be extended: a third of the visibility timeout.
func (q *RedisQueue) ExtendInterval() time.Duration {
	return q.visibility / 3
}

// Requeue hands expired in-flight tasks out again; returns how many were moved.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	now := time.Now()
	args := []interface{}{
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(q.visibility).UnixMilli(), 10),
	}
	n, err := requeueScript.Run(ctx, q.client, []string{q.inflight, q.processing, q.pending}, args...).Int()
	if err != nil {
		return 0, errors.Wrap(err, "requeuing expired tasks")
	}
	return n, nil
}

// Len returns the number of pending tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pending).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
