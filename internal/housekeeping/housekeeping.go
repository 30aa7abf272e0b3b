// Package housekeeping runs the periodic maintenance sweep: requeuing
// dead-lettered jobs back onto their origin queue and refreshing queue
// depth metrics. Grounded on the teacher's cron-driven schedule runner,
// adapted from user-defined job schedules to a fixed internal sweep, and
// from its own lock.go to the shared internal/lock package, so only one
// running instance performs the sweep at a time.
package housekeeping

import (
	"context"
	"time"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/lock"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/metrics"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	sweepLockKey  = "housekeeping:sweep"
	sweepLockTTL  = 60 * time.Second
	dlqBatchLimit = 100
)

// Runner owns a cron schedule that periodically sweeps the dead-letter
// stream back onto its origin queues and republishes queue depth
// metrics for every registered queue.
type Runner struct {
	store    store.Store
	registry *queue.Registry
	client   *redis.Client
	cron     *cron.Cron
}

// NewRunner builds a Runner. client is used only to take the sweep's
// distributed lock; all job data moves through store.
func NewRunner(s store.Store, registry *queue.Registry, client *redis.Client) *Runner {
	return &Runner{store: s, registry: registry, client: client, cron: cron.New()}
}

// Start schedules the sweep on expr (a standard 5-field cron expression,
// or one of robfig/cron's "@every"/"@hourly" descriptors) and starts the
// cron scheduler's own goroutine.
func (r *Runner) Start(expr string) error {
	_, err := r.cron.AddFunc(expr, func() {
		r.sweep(context.Background())
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	logger.Info("housekeeping started", "schedule", expr)
	return nil
}

// Stop waits for any in-flight sweep to finish and stops the schedule.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Info("housekeeping stopped")
}

// sweep acquires the single-instance lock, requeues dead-lettered jobs,
// and refreshes queue depth metrics. It is a no-op if another instance
// already holds the lock.
func (r *Runner) sweep(ctx context.Context) {
	l, err := lock.Acquire(ctx, r.client, sweepLockKey, sweepLockTTL)
	if err != nil {
		logger.Error("housekeeping: failed to acquire sweep lock", "error", err)
		return
	}
	if l == nil {
		logger.Debug("housekeeping: sweep already running elsewhere")
		return
	}
	defer l.Release(ctx)

	r.requeueDLQ(ctx)
	r.refreshQueueDepths(ctx)
}

// requeueDLQ reads up to dlqBatchLimit entries from the dead-letter stream
// and re-enqueues each onto its origin queue's highest-priority stream,
// resetting its attempt counter. Malformed or orphaned entries (queue no
// longer registered) are logged and skipped, not retried forever.
func (r *Runner) requeueDLQ(ctx context.Context) {
	entries, ok := r.store.ReadDLQEntries(ctx, "0", dlqBatchLimit)
	if !ok || len(entries) == 0 {
		return
	}

	requeued := 0
	for _, entry := range entries {
		queueName, _ := entry.Payload["_origin_queue"].(string)
		d, found := r.registry.Get(queueName)
		if !found {
			logger.Warn("housekeeping: dlq entry references unknown queue, skipping",
				"job_id", entry.JobID, "queue", queueName)
			continue
		}

		stream := d.Streams()[0]
		delete(entry.Payload, "_origin_queue")
		r.store.ClearAttempts(ctx, entry.JobID)
		r.store.SetStatus(ctx, entry.JobID, job.StatusQueued)
		if r.store.Enqueue(ctx, stream, entry.JobID, entry.Payload, d.Priorities[0]) {
			requeued++
		}
	}

	if requeued > 0 {
		logger.Info("housekeeping: requeued dead-lettered jobs", "count", requeued)
	}
}

// refreshQueueDepths publishes the current entry count of every stream
// across every registered queue into the metrics collector.
func (r *Runner) refreshQueueDepths(ctx context.Context) {
	for _, d := range r.registry.List() {
		for _, priority := range d.Priorities {
			stream := queue.StreamKey(d.Name, priority)
			depth, ok := r.store.StreamDepth(ctx, stream)
			if !ok {
				continue
			}
			metrics.Default().RecordQueueDepth(d.Name, priority, depth)
		}
	}
}
