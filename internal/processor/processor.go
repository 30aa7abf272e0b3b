// Package processor implements the dedup-gated, retry-aware execution of
// a single job: acquire the dedup lease, run the handler, and route the
// outcome to completion, retry, or the dead-letter stream.
package processor

import (
	"context"
	"time"

	"github.com/nuulab/disqueue/internal/errors"
	"github.com/nuulab/disqueue/internal/handler"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/metrics"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/result"
	"github.com/nuulab/disqueue/internal/retry"
	"github.com/nuulab/disqueue/internal/store"
)

// Outcome describes what happened to a single dispatch attempt.
type Outcome int

const (
	Completed Outcome = iota
	Retrying
	Failed
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Retrying:
		return "retrying"
	case Failed:
		return "failed"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Processor executes jobs for one queue descriptor against a shared Store
// and handler registry.
type Processor struct {
	store      store.Store
	handlers   *handler.Registry
	descriptor queue.Descriptor
	strategy   retry.Strategy
	results    result.Backend
}

// New builds a Processor for descriptor, constructing its retry strategy
// via retry.NewStrategy.
func New(s store.Store, handlers *handler.Registry, descriptor queue.Descriptor) (*Processor, error) {
	strategy, err := retry.NewStrategy(descriptor.RetryStrategy, descriptor.RetryLimit)
	if err != nil {
		return nil, err
	}
	return &Processor{store: s, handlers: handlers, descriptor: descriptor, strategy: strategy}, nil
}

// WithResultBackend attaches a result backend that gets a notification
// every time a job reaches a terminal status (completed or failed). Nil
// by default, in which case terminal outcomes are only recorded in the
// Store, per the submission surface's own status polling.
func (p *Processor) WithResultBackend(backend result.Backend) *Processor {
	p.results = backend
	return p
}

func (p *Processor) publishResult(ctx context.Context, jobID string, status job.Status, errMsg string) {
	if p.results == nil {
		return
	}
	n := result.Notification{JobID: jobID, Status: status, Error: errMsg, CompletedAt: time.Now()}
	if err := p.results.PublishResult(ctx, n); err != nil {
		logger.Warn("failed to publish job result", "job_id", jobID, "error", err)
	}
}

// Execute runs the processing protocol for one entry read from stream:
// dedup-gate, dispatch, then status/attempts/retry/DLQ bookkeeping.
func (p *Processor) Execute(ctx context.Context, jobID string, payload job.Payload, stream string) Outcome {
	if !p.store.AcquireDedup(ctx, jobID) {
		logger.Debug("duplicate delivery skipped", "job_id", jobID, "queue", p.descriptor.Name)
		metrics.Default().RecordDedupDuplicate()
		return Duplicate
	}

	p.store.SetStatus(ctx, jobID, job.StatusInProgress)
	priority := p.priorityOf(stream)
	metrics.Default().RecordJobStarted(priority)

	start := time.Now()
	err := p.executeHandler(ctx, payload)
	duration := time.Since(start)

	if err == nil {
		p.store.SetStatus(ctx, jobID, job.StatusCompleted)
		p.store.ClearAttempts(ctx, jobID)
		p.store.MarkDedupDone(ctx, jobID)
		metrics.Default().RecordJobCompleted(duration)
		p.publishResult(ctx, jobID, job.StatusCompleted, "")
		return Completed
	}

	logger.Warn("job handler failed", "job_id", jobID, "queue", p.descriptor.Name, "error", err)
	metrics.Default().RecordJobFailed(duration)

	attempts, ok := p.store.IncrAttempts(ctx, jobID)
	if !ok {
		// Broker error incrementing attempts; treat conservatively as a
		// retry candidate below rather than silently dropping the job.
		attempts = 1
	}

	if p.strategy.ShouldRetry(attempts) {
		p.store.SetStatus(ctx, jobID, job.StatusRetrying)
		delay := p.strategy.Delay(attempts)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
		p.store.Enqueue(ctx, stream, jobID, payload, priority)
		// Enqueue writes status=queued; restore retrying for the re-appended entry.
		p.store.SetStatus(ctx, jobID, job.StatusRetrying)
		p.store.ReleaseDedup(ctx, jobID)
		return Retrying
	}

	p.store.SetStatus(ctx, jobID, job.StatusFailed)
	p.store.ClearAttempts(ctx, jobID)
	if p.descriptor.EnableDLQ {
		p.store.SendToDLQ(ctx, jobID, p.taggedForDLQ(payload), err.Error())
		metrics.Default().RecordDLQAppend()
	}
	p.store.ReleaseDedup(ctx, jobID)
	p.publishResult(ctx, jobID, job.StatusFailed, err.Error())
	return Failed
}

// executeHandler runs the queue's handler, recovering a panic into an
// error so it flows through the same retry/DLQ branch as an ordinary
// handler failure instead of taking down the worker goroutine.
func (p *Processor) executeHandler(ctx context.Context, payload job.Payload) (err error) {
	defer func() {
		if panicErr := errors.RecoverPanic(); panicErr != nil {
			if pe, ok := panicErr.(*errors.PanicError); ok {
				logger.Error("handler panicked", "queue", p.descriptor.Name, "panic", errors.FormatPanicForLog(pe))
			}
			err = panicErr
		}
	}()
	return p.handlers.Execute(ctx, p.descriptor.Name, payload)
}

// dlqOriginQueueField tags a dead-lettered payload with the queue it came
// from, so housekeeping's requeue-all sweep knows which queue to put it
// back on without having to thread that information through the broker
// stream entry itself.
const dlqOriginQueueField = "_origin_queue"

// taggedForDLQ returns a copy of payload with the origin queue recorded,
// leaving the caller's original payload untouched.
func (p *Processor) taggedForDLQ(payload job.Payload) job.Payload {
	tagged := make(job.Payload, len(payload)+1)
	for k, v := range payload {
		tagged[k] = v
	}
	tagged[dlqOriginQueueField] = p.descriptor.Name
	return tagged
}

// priorityOf recovers the priority a stream name encodes, for re-enqueuing
// a retried job onto the same stream it came from.
func (p *Processor) priorityOf(stream string) job.Priority {
	for _, pr := range p.descriptor.Priorities {
		if queue.StreamKey(p.descriptor.Name, pr) == stream {
			return pr
		}
	}
	return job.PriorityDefault
}
