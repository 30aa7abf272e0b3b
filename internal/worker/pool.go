// Package worker runs the dispatch loop that pulls entries off each
// queue's streams, in priority order, and hands them to the processor.
package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nuulab/disqueue/internal/handler"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/processor"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/nuulab/disqueue/internal/stream"
)

// Binding ties one queue descriptor to the stream manager and processor
// that serve it. The worker pool round-robins across bindings rather
// than across individual streams, so no queue can starve another.
type Binding struct {
	Descriptor queue.Descriptor
	Manager    *stream.Manager
	Processor  *processor.Processor
}

// NewBinding builds a Binding for descriptor, seeding its stream manager's
// cursors from store.
func NewBinding(ctx context.Context, s store.Store, handlers *handler.Registry, descriptor queue.Descriptor) (Binding, error) {
	p, err := processor.New(s, handlers, descriptor)
	if err != nil {
		return Binding{}, err
	}
	m := stream.NewManager(ctx, s, descriptor.Streams())
	return Binding{Descriptor: descriptor, Manager: m, Processor: p}, nil
}

// idleBackoff is how long a worker sleeps after a pass over every
// binding turned up nothing to do.
const idleBackoff = 250 * time.Millisecond

// Pool runs concurrency worker goroutines, each independently round-
// robining across every binding.
type Pool struct {
	store      store.Store
	bindings   []Binding
	wg         sync.WaitGroup
	stopped    atomic.Bool
	stopCh     chan struct{}
	activeJobs atomic.Int64
}

// NewPool builds a Pool that dispatches across bindings, reading from s
// to resolve cancellation before each dispatch.
func NewPool(s store.Store, bindings []Binding) *Pool {
	return &Pool{
		store:    s,
		bindings: bindings,
		stopCh:   make(chan struct{}),
	}
}

// Start launches concurrency worker goroutines against ctx.
func (p *Pool) Start(ctx context.Context, concurrency int) {
	logger.Info("starting worker pool", "workers", concurrency, "queues", len(p.bindings))
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i+1)
	}
}

// Stop signals every worker to exit and waits up to 30 seconds for them
// to drain their current job.
func (p *Pool) Stop() {
	if p.stopped.CompareAndSwap(false, true) {
		close(p.stopCh)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker pool stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("worker pool shutdown timed out", "timeout", "30s")
	}
}

func (p *Pool) run(ctx context.Context, workerID int) {
	defer p.wg.Done()

	logger.Info("worker started", "worker_id", workerID)

	for {
		select {
		case <-p.stopCh:
			logger.Info("worker stopping", "worker_id", workerID)
			return
		case <-ctx.Done():
			logger.Info("worker stopping, context cancelled", "worker_id", workerID)
			return
		default:
		}

		if !p.dispatchOnceSafe(ctx, workerID) {
			select {
			case <-time.After(idleBackoff):
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// dispatchOnceSafe guards dispatchOnce with a backstop recover: handler
// panics are already turned into failures by the processor, so reaching
// here means something in the dispatch loop itself (stream read, store
// call) panicked. The worker logs and keeps its slot rather than
// permanently shrinking pool concurrency.
func (p *Pool) dispatchOnceSafe(ctx context.Context, workerID int) (did bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker recovered from panic in dispatch loop",
				"worker_id", workerID, "panic_value", r, "stack_trace", string(debug.Stack()))
			did = false
		}
	}()
	return p.dispatchOnce(ctx, workerID)
}

// dispatchOnce makes one pass over every binding in registration order,
// handling at most one available entry from each. It returns false if
// nothing was available on any binding.
func (p *Pool) dispatchOnce(ctx context.Context, workerID int) bool {
	did := false
	for _, b := range p.bindings {
		if p.stopped.Load() || ctx.Err() != nil {
			break
		}
		streamName, entryID, fields, ok := b.Manager.Next(ctx)
		if !ok {
			continue
		}
		did = true

		jobID := fields["job_id"]
		payload, err := job.UnmarshalPayload(fields["payload"])
		if err != nil {
			logger.Error("failed to unmarshal payload, skipping entry",
				"worker_id", workerID, "job_id", jobID, "stream", streamName, "error", err)
			b.Manager.Advance(ctx, streamName, entryID)
			continue
		}

		if status, found := p.store.GetStatus(ctx, jobID); found && status == job.StatusCancelled {
			logger.Debug("skipping cancelled job", "worker_id", workerID, "job_id", jobID)
			b.Manager.Advance(ctx, streamName, entryID)
			continue
		}

		p.activeJobs.Add(1)
		outcome := b.Processor.Execute(ctx, jobID, payload, streamName)
		p.activeJobs.Add(-1)

		logger.Info("dispatched job", "worker_id", workerID, "job_id", jobID,
			"queue", b.Descriptor.Name, "outcome", outcome.String())

		b.Manager.Advance(ctx, streamName, entryID)
	}
	return did
}
