// Package client is the in-process Go API for submitting jobs to
// DisQueue, checking their status, and cancelling them, without going
// through the HTTP submission surface.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/queue"
	"github.com/nuulab/disqueue/internal/result"
	"github.com/nuulab/disqueue/internal/store"
	"github.com/redis/go-redis/v9"
)

// Client provides a simple API for submitting and managing jobs.
type Client struct {
	store         store.Store
	registry      *queue.Registry
	resultBackend result.Backend
}

// NewClient connects a Client to redisURL, registering the given queue
// descriptors. The result backend is enabled by default with standard
// TTLs (1h success, 24h failure).
func NewClient(redisURL string, descriptors ...queue.Descriptor) (*Client, error) {
	return NewClientWithConfig(redisURL, 1*time.Hour, 24*time.Hour, descriptors...)
}

// NewClientWithConfig connects a Client with custom result backend TTLs.
func NewClientWithConfig(redisURL string, successTTL, failureTTL time.Duration, descriptors ...queue.Descriptor) (*Client, error) {
	s, err := store.NewRedisStore(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if len(descriptors) == 0 {
		descriptors = queue.DefaultDescriptors()
	}
	registry, err := queue.NewRegistry(descriptors...)
	if err != nil {
		return nil, fmt.Errorf("failed to build queue registry: %w", err)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	resultBackend := result.NewRedisBackend(redis.NewClient(opts), successTTL, failureTTL)

	return &Client{store: s, registry: registry, resultBackend: resultBackend}, nil
}

// Submit enqueues a job under the caller-supplied jobID, per this
// system's externally-generated-identifier model: resubmitting the same
// ID is the producer's idempotency mechanism, not something the core
// arbitrates.
func (c *Client) Submit(ctx context.Context, queueName string, priority job.Priority, jobID string, payload job.Payload) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if err := c.registry.Validate(queueName, priority); err != nil {
		return err
	}
	d, _ := c.registry.Get(queueName)

	stream := queue.StreamKey(queueName, priority)
	if !c.store.Enqueue(ctx, stream, jobID, payload, priority) {
		return fmt.Errorf("failed to enqueue job onto queue %q", d.Name)
	}
	return nil
}

// SubmitAutoID is Submit for callers that don't mint their own job IDs:
// it generates one with uuid and returns it alongside any error.
func (c *Client) SubmitAutoID(ctx context.Context, queueName string, priority job.Priority, payload job.Payload) (string, error) {
	jobID := uuid.New().String()
	if err := c.Submit(ctx, queueName, priority, jobID, payload); err != nil {
		return "", err
	}
	return jobID, nil
}

// Status retrieves a job's current status.
func (c *Client) Status(ctx context.Context, jobID string) (job.Status, error) {
	status, ok := c.store.GetStatus(ctx, jobID)
	if !ok {
		return "", fmt.Errorf("job %q not found", jobID)
	}
	return status, nil
}

// Cancel marks jobID cancelled, per this system's cancel-before-dispatch
// semantics: only a queued or retrying job can be cancelled, an already
// cancelled job is accepted as-is, and a job that is in progress or
// finished is rejected. A job that starts between the status check and
// the write still runs to completion.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	status, ok := c.store.GetStatus(ctx, jobID)
	if !ok {
		return fmt.Errorf("job %q not found", jobID)
	}
	if status == job.StatusCancelled {
		return nil
	}
	if !status.Cancellable() {
		return fmt.Errorf("job %q is %s and cannot be cancelled", jobID, status)
	}
	if !c.store.Cancel(ctx, jobID) {
		return fmt.Errorf("job %q not found", jobID)
	}
	return nil
}

// ListQueues returns every registered queue descriptor.
func (c *Client) ListQueues() []queue.Descriptor {
	return c.registry.List()
}

// SubmitAndWait submits a job under an auto-generated ID and blocks
// until it reaches a terminal status or timeout elapses, for RPC-style
// task execution.
func (c *Client) SubmitAndWait(ctx context.Context, queueName string, priority job.Priority, payload job.Payload, timeout time.Duration) (*result.Notification, error) {
	jobID, err := c.SubmitAutoID(ctx, queueName, priority, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	n, err := c.resultBackend.WaitForResult(ctx, jobID, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for result: %w", err)
	}
	if n == nil {
		return nil, fmt.Errorf("job did not complete within timeout of %v", timeout)
	}
	return n, nil
}

// Close closes the client's Redis connections.
func (c *Client) Close() error {
	var storeErr, resultErr error
	if c.store != nil {
		storeErr = c.store.Close()
	}
	if c.resultBackend != nil {
		resultErr = c.resultBackend.Close()
	}
	if storeErr != nil {
		return storeErr
	}
	return resultErr
}
