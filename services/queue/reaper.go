package queue

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/remindme/core"
)

// Requeuer is implemented by queues whose unacked tasks expire (see RedisQueue).
type Requeuer interface {
	Requeue(ctx context.Context) (int, error)
}

// Reaper periodically requeues expired in-flight tasks.
type Reaper struct {
	cron     *cron.Cron
	queue    Requeuer
	interval time.Duration
	logger   core.Logger
}

func NewReaper(queue Requeuer, interval time.Duration, logger core.Logger) (*Reaper, error) {
	if interval < time.Second {
		interval = time.Second
	}
	r := &Reaper{
		cron:     cron.New(),
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
	if _, err := r.cron.AddFunc("@every "+interval.String(), r.Run); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop stops scheduling runs and returns a context done once the running one (if any) completes.
func (r *Reaper) Stop() context.Context {
	return r.cron.Stop()
}

// Run requeues expired tasks once.
func (r *Reaper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	n, err := r.queue.Requeue(ctx)
	if err != nil {
		r.logger.Error("requeuing expired tasks", err)
		return
	}
	if n > 0 {
		r.logger.Warn("requeued expired tasks", map[string]interface{}{"count": n})
	}
}
