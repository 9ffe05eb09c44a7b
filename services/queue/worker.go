package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

// Handler processes one task. Its error is logged; the task is not retried.
type Handler func(ctx context.Context, task core.Task) error

// Extender is implemented by queues whose in-flight tasks expire (see RedisQueue).
// The Pool extends a task every ExtendInterval while its handler runs.
type Extender interface {
	Extend(ctx context.Context, task core.Task) error
	ExtendInterval() time.Duration
}

// Pool runs N workers dequeuing from a TaskQueue.
type Pool struct {
	queue   core.TaskQueue
	handler Handler
	workers int
	logger  core.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(queue core.TaskQueue, handler Handler, workers int, logger core.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{queue: queue, handler: handler, workers: workers, logger: logger}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return // already started
	}
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}
	p.logger.Info("worker pool started", map[string]interface{}{"workers": p.workers})
}

// Stop stops dequeuing and waits for in-flight tasks, at most until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for workers")
	}
}

func (p *Pool) work(ctx context.Context, idx int) {
	defer p.wg.Done()

	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Cause(err) == ErrQueueClosed {
				return
			}
			p.logger.Error("dequeuing task", err, map[string]interface{}{"worker": idx})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// in-flight tasks run to completion even once the pool is stopping
		taskCtx := context.WithoutCancel(ctx)
		stopExtending := p.keepInFlight(taskCtx, task)
		err = p.process(taskCtx, task)
		stopExtending()
		if err != nil {
			p.logger.Error("processing task", err, map[string]interface{}{
				"worker":      idx,
				"task_id":     task.ID,
				"kind":        task.Kind,
				"schedule_id": task.ScheduleID,
			})
		}
		if err := p.queue.Ack(taskCtx, task); err != nil {
			p.logger.Error("acking task", err, map[string]interface{}{"task_id": task.ID})
		}
	}
}

// keepInFlight extends task until the returned func is called, when the queue supports it.
func (p *Pool) keepInFlight(ctx context.Context, task core.Task) (stop func()) {
	ext, ok := p.queue.(Extender)
	if !ok || ext.ExtendInterval() <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(ext.ExtendInterval())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ext.Extend(ctx, task); err != nil {
					p.logger.Error("extending task", err, map[string]interface{}{"task_id": task.ID})
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func (p *Pool) process(ctx context.Context, task core.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return p.handler(ctx, task)
}
