package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(client), mr
}

func TestEnqueueThenReadNext(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	stream := "disqueue:default:high"
	ok := s.Enqueue(ctx, stream, "job-1", job.Payload{"x": 1.0}, job.PriorityHigh)
	if !ok {
		t.Fatal("Enqueue returned false")
	}

	status, found := s.GetStatus(ctx, "job-1")
	if !found || status != job.StatusQueued {
		t.Fatalf("status = %v, found=%v, want queued/true", status, found)
	}

	id, fields, ok := s.ReadNext(ctx, stream, "0")
	if !ok {
		t.Fatal("ReadNext found nothing")
	}
	if id == "" {
		t.Error("expected non-empty entry id")
	}
	if fields["job_id"] != "job-1" {
		t.Errorf("fields[job_id] = %q, want job-1", fields["job_id"])
	}
}

func TestReadNextRespectsCursor(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()
	stream := "disqueue:default:high"

	s.Enqueue(ctx, stream, "job-1", job.Payload{}, job.PriorityHigh)
	id1, _, _ := s.ReadNext(ctx, stream, "0")

	s.Enqueue(ctx, stream, "job-2", job.Payload{}, job.PriorityHigh)
	id2, fields2, ok := s.ReadNext(ctx, stream, id1)
	if !ok {
		t.Fatal("expected a second entry after cursor")
	}
	if id2 == id1 {
		t.Fatal("ReadNext returned the same entry twice")
	}
	if fields2["job_id"] != "job-2" {
		t.Errorf("fields2[job_id] = %q, want job-2", fields2["job_id"])
	}
}

func TestAttemptsLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	n, ok := s.IncrAttempts(ctx, "job-1")
	if !ok || n != 1 {
		t.Fatalf("IncrAttempts = %d, %v, want 1, true", n, ok)
	}
	n, _ = s.IncrAttempts(ctx, "job-1")
	if n != 2 {
		t.Fatalf("IncrAttempts = %d, want 2", n)
	}
	if !s.ClearAttempts(ctx, "job-1") {
		t.Fatal("ClearAttempts failed")
	}
}

func TestCursorRoundtrip(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	if got := s.GetCursor(ctx, "disqueue:default:high"); got != "0" {
		t.Fatalf("initial cursor = %q, want 0", got)
	}
	if !s.SetCursor(ctx, "disqueue:default:high", "123-0") {
		t.Fatal("SetCursor failed")
	}
	if got := s.GetCursor(ctx, "disqueue:default:high"); got != "123-0" {
		t.Fatalf("cursor = %q, want 123-0", got)
	}
	if !s.ClearAllCursors(ctx) {
		t.Fatal("ClearAllCursors failed")
	}
	if got := s.GetCursor(ctx, "disqueue:default:high"); got != "0" {
		t.Fatalf("cursor after clear = %q, want 0", got)
	}
}

func TestCancelRequiresExistingStatus(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	if s.Cancel(ctx, "ghost-job") {
		t.Fatal("Cancel should fail for a job with no status entry")
	}

	s.SetStatus(ctx, "job-1", job.StatusQueued)
	if !s.Cancel(ctx, "job-1") {
		t.Fatal("Cancel should succeed for a known job")
	}
	status, _ := s.GetStatus(ctx, "job-1")
	if status != job.StatusCancelled {
		t.Fatalf("status after cancel = %s, want cancelled", status)
	}
}

func TestDedupLeaseLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	if !s.AcquireDedup(ctx, "job-1") {
		t.Fatal("expected first AcquireDedup to succeed")
	}
	if s.AcquireDedup(ctx, "job-1") {
		t.Fatal("expected second AcquireDedup to fail while lease held")
	}
	if !s.ReleaseDedup(ctx, "job-1") {
		t.Fatal("ReleaseDedup failed")
	}
	if !s.AcquireDedup(ctx, "job-1") {
		t.Fatal("expected AcquireDedup to succeed again after release")
	}
	if !s.MarkDedupDone(ctx, "job-1") {
		t.Fatal("MarkDedupDone failed")
	}
}

func TestSendToDLQ(t *testing.T) {
	s, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	if !s.SendToDLQ(ctx, "job-1", job.Payload{"k": "v"}, "handler panicked") {
		t.Fatal("SendToDLQ failed")
	}
	id, fields, ok := s.ReadNext(ctx, dlqStream, "0")
	if !ok {
		t.Fatal("expected a dlq entry")
	}
	if id == "" || fields["reason"] != "handler panicked" {
		t.Errorf("unexpected dlq entry: %v", fields)
	}
}
