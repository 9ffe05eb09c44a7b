package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task kinds
const (
	TaskScheduleApproved = "schedule.approved"
)

// Task is a unit of background work. Queues deliver tasks at least once.
type Task struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	ScheduleID int64     `json:"schedule_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Receipt identifies a dequeued delivery; set by the queue, needed to Ack it.
	Receipt string `json:"-"`
}

func NewTask(kind string, scheduleID int64) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		ScheduleID: scheduleID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// TaskQueue is a durable FIFO of Tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
	// Ack marks a dequeued task as done so that it is not delivered again.
	Ack(ctx context.Context, task Task) error
	Close() error
}
