package housekeeping

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/redis/go-redis/v9"
)

func newTestRunner(t *testing.T) (*Runner, store.Store, *queue.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisStoreFromClient(client)

	d := queue.NewDescriptor("default", []job.Priority{job.PriorityHigh}, "fixed", 0, true)
	registry, err := queue.NewRegistry(d)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	return NewRunner(s, registry, client), s, registry, mr
}

func TestSweepRequeuesDLQEntries(t *testing.T) {
	ctx := context.Background()
	r, s, registry, mr := newTestRunner(t)
	defer mr.Close()

	d, _ := registry.Get("default")
	stream := d.Streams()[0]

	s.Enqueue(ctx, stream, "job-1", job.Payload{"k": "v"}, job.PriorityHigh)
	s.SendToDLQ(ctx, "job-1", job.Payload{"k": "v", "_origin_queue": "default"}, "handler failed")

	r.sweep(ctx)

	entries, ok := s.ReadDLQEntries(ctx, "0", 10)
	if !ok {
		t.Fatal("ReadDLQEntries failed")
	}
	if len(entries) != 1 {
		t.Fatalf("expected the dlq stream to still hold its original entry (XRANGE, not consumed), got %d", len(entries))
	}

	_, _, ok2 := s.ReadNext(ctx, stream, "0")
	if !ok2 {
		t.Fatal("expected job to be requeued onto the default stream")
	}
}

func TestSweepSkipsUnknownQueue(t *testing.T) {
	ctx := context.Background()
	r, s, _, mr := newTestRunner(t)
	defer mr.Close()

	s.SendToDLQ(ctx, "job-2", job.Payload{"_origin_queue": "nonexistent"}, "boom")
	r.sweep(ctx) // should not panic
}

func TestRefreshQueueDepths(t *testing.T) {
	ctx := context.Background()
	r, s, registry, mr := newTestRunner(t)
	defer mr.Close()

	d, _ := registry.Get("default")
	stream := d.Streams()[0]
	s.Enqueue(ctx, stream, "job-1", job.Payload{}, job.PriorityHigh)

	r.refreshQueueDepths(ctx)
}
