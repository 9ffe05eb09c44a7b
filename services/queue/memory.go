package queue

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// MemoryQueue is a bounded in-process queue. Tasks are lost on restart.
type MemoryQueue struct {
	mu     sync.RWMutex
	tasks  chan core.Task
	closed bool
}

var _ core.TaskQueue = (*MemoryQueue)(nil)

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{tasks: make(chan core.Task, size)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task core.Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (core.Task, error) {
	select {
	case <-ctx.Done():
		return core.Task{}, ctx.Err()
	case task, ok := <-q.tasks:
		if !ok {
			return core.Task{}, ErrQueueClosed
		}
		task.Receipt = task.ID
		return task, nil
	}
}

// Ack is a no-op: a dequeued task has already left the channel.
func (q *MemoryQueue) Ack(context.Context, core.Task) error {
	return nil
}

func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

// Close stops accepting tasks; queued ones can still be dequeued.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}
