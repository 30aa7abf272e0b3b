package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nuulab/disqueue/internal/handler"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/redis/go-redis/v9"
)

func newTestPool(t *testing.T, ctx context.Context, d queue.Descriptor, h *handler.Registry) (*Pool, store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisStoreFromClient(client)

	b, err := NewBinding(ctx, s, h, d)
	if err != nil {
		t.Fatalf("NewBinding: %v", err)
	}
	return NewPool(s, []Binding{b}), s, mr
}

func TestDispatchOnceProcessesQueuedJob(t *testing.T) {
	ctx := context.Background()
	d := queue.NewDescriptor("default", []job.Priority{job.PriorityHigh}, "fixed", 3, true)
	done := make(chan struct{}, 1)
	h := handler.NewRegistry()
	h.Register("default", func(ctx context.Context, p job.Payload) error {
		done <- struct{}{}
		return nil
	})

	pool, s, mr := newTestPool(t, ctx, d, h)
	defer mr.Close()

	stream := d.Streams()[0]
	s.Enqueue(ctx, stream, "job-1", job.Payload{"k": "v"}, job.PriorityHigh)

	if !pool.dispatchOnce(ctx, 1) {
		t.Fatal("dispatchOnce = false, want true")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}

	status, _ := s.GetStatus(ctx, "job-1")
	if status != job.StatusCompleted {
		t.Errorf("status = %s, want completed", status)
	}
}

func TestDispatchOnceEmptyReturnsFalse(t *testing.T) {
	ctx := context.Background()
	d := queue.NewDescriptor("default", []job.Priority{job.PriorityHigh}, "fixed", 3, true)
	h := handler.NewRegistry()
	h.Register("default", func(ctx context.Context, p job.Payload) error { return nil })

	pool, _, mr := newTestPool(t, ctx, d, h)
	defer mr.Close()

	if pool.dispatchOnce(ctx, 1) {
		t.Fatal("dispatchOnce = true on an empty stream, want false")
	}
}

func TestDispatchOnceSkipsCancelledJob(t *testing.T) {
	ctx := context.Background()
	d := queue.NewDescriptor("default", []job.Priority{job.PriorityHigh}, "fixed", 3, true)
	called := false
	h := handler.NewRegistry()
	h.Register("default", func(ctx context.Context, p job.Payload) error { called = true; return nil })

	pool, s, mr := newTestPool(t, ctx, d, h)
	defer mr.Close()

	stream := d.Streams()[0]
	s.Enqueue(ctx, stream, "job-1", job.Payload{}, job.PriorityHigh)
	s.Cancel(ctx, "job-1")

	if !pool.dispatchOnce(ctx, 1) {
		t.Fatal("dispatchOnce = false, want true (cancelled entries still advance the cursor)")
	}
	if called {
		t.Error("handler should not run for a cancelled job")
	}
}

func TestStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := queue.NewDescriptor("default", []job.Priority{job.PriorityHigh}, "fixed", 3, true)
	h := handler.NewRegistry()
	h.Register("default", func(ctx context.Context, p job.Payload) error { return nil })

	pool, _, mr := newTestPool(t, ctx, d, h)
	defer mr.Close()

	pool.Start(ctx, 2)
	pool.Stop()
}
