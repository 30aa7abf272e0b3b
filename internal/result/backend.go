// Package result provides a pub/sub notification backend so a submitter
// can wait for a job's terminal status instead of polling the job store.
package result

import (
	"context"
	"time"

	"github.com/nuulab/disqueue/internal/job"
)

// Notification is published when a job reaches a terminal status.
type Notification struct {
	JobID       string
	Status      job.Status
	Error       string
	CompletedAt time.Time
}

// Backend publishes terminal job outcomes and lets callers wait on one.
type Backend interface {
	// PublishResult records n and wakes any WaitForResult call blocked on
	// n.JobID.
	PublishResult(ctx context.Context, n Notification) error

	// GetResult retrieves the last published notification for jobID.
	// Returns nil, nil if the job hasn't reached a terminal status yet.
	GetResult(ctx context.Context, jobID string) (*Notification, error)

	// WaitForResult blocks until a result is available or timeout elapses.
	// Returns nil, nil on timeout.
	WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*Notification, error)

	DeleteResult(ctx context.Context, jobID string) error

	Close() error
}
