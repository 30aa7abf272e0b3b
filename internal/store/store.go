// Package store is the broker facade: every read or write DisQueue makes
// against Redis/DragonflyDB goes through here. Grounded on the teacher's
// internal/queue.RedisQueue, adapted from list+BRPOPLPUSH+ZSET primitives
// to Redis Streams (XADD/XREAD) plus hashes and conditional SETNX, to
// match an append-only-stream broker model with per-stream cursors.
package store

import (
	"context"

	"github.com/nuulab/disqueue/internal/job"
)

// Store is the broker-facing contract used by the stream manager, the
// processor and the submission surface. Every method that can fail due to
// a transient broker error returns a boolean/zero-value pair rather than
// an error: callers (principally the worker loop) treat a failed read as
// "nothing available" and a failed write as a logged, non-fatal event,
// per the error handling design in this system's specification.
type Store interface {
	// Enqueue appends a job onto stream, recording its initial status and
	// zeroed retry count first so a status entry never lags behind a
	// stream entry.
	Enqueue(ctx context.Context, stream, jobID string, payload job.Payload, priority job.Priority) bool

	// ReadNext blocks briefly for the next entry on stream after cursor.
	// ok is false if the stream had nothing new within the block window.
	ReadNext(ctx context.Context, stream, cursor string) (entryID string, fields map[string]string, ok bool)

	GetStatus(ctx context.Context, jobID string) (job.Status, bool)
	SetStatus(ctx context.Context, jobID string, status job.Status) bool

	IncrAttempts(ctx context.Context, jobID string) (int, bool)
	ClearAttempts(ctx context.Context, jobID string) bool

	GetCursor(ctx context.Context, stream string) string
	SetCursor(ctx context.Context, stream, entryID string) bool
	ClearAllCursors(ctx context.Context) bool

	SendToDLQ(ctx context.Context, jobID string, payload job.Payload, reason string) bool

	// Cancel marks jobID cancelled unconditionally, provided a status
	// entry already exists for it. Returns false if the job is unknown.
	Cancel(ctx context.Context, jobID string) bool

	// AcquireDedup takes the per-job dedup lease. False means another
	// worker already holds it (a duplicate delivery, not an error).
	AcquireDedup(ctx context.Context, jobID string) bool
	MarkDedupDone(ctx context.Context, jobID string) bool
	ReleaseDedup(ctx context.Context, jobID string) bool

	// StreamDepth reports the number of entries currently on stream,
	// used by housekeeping to publish queue depth metrics.
	StreamDepth(ctx context.Context, stream string) (int64, bool)

	// ReadDLQEntries reads up to limit entries from the dead-letter
	// stream after cursor, for housekeeping's requeue-all sweep.
	ReadDLQEntries(ctx context.Context, cursor string, limit int64) (entries []DLQEntry, ok bool)

	Close() error
}

// DLQEntry is one entry read back off the dead-letter stream.
type DLQEntry struct {
	EntryID string
	JobID   string
	Payload job.Payload
	Reason  string
}
