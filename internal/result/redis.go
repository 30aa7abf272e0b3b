package result

import (
	"context"
	"fmt"
	"time"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend over Redis hashes and pub/sub.
type RedisBackend struct {
	client     *redis.Client
	successTTL time.Duration
	failureTTL time.Duration
}

// NewRedisBackend creates a new Redis-backed result backend.
func NewRedisBackend(client *redis.Client, successTTL, failureTTL time.Duration) *RedisBackend {
	return &RedisBackend{client: client, successTTL: successTTL, failureTTL: failureTTL}
}

func resultKey(jobID string) string {
	return fmt.Sprintf("disqueue:result:%s", jobID)
}

func notifyChannel(jobID string) string {
	return fmt.Sprintf("disqueue:result:notify:%s", jobID)
}

// PublishResult stores n and wakes any WaitForResult call blocked on it.
func (r *RedisBackend) PublishResult(ctx context.Context, n Notification) error {
	key := resultKey(n.JobID)

	data := map[string]interface{}{
		"status":       string(n.Status),
		"completed_at": n.CompletedAt.Format(time.RFC3339),
	}
	if n.Error != "" {
		data["error"] = n.Error
	}

	ttl := r.successTTL
	if n.Status == job.StatusFailed {
		ttl = r.failureTTL
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, ttl)
	pipe.Publish(ctx, notifyChannel(n.JobID), "ready")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}
	return nil
}

// GetResult retrieves the last published notification for jobID.
func (r *RedisBackend) GetResult(ctx context.Context, jobID string) (*Notification, error) {
	data, err := r.client.HGetAll(ctx, resultKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	n := &Notification{JobID: jobID}
	if status, ok := data["status"]; ok {
		n.Status = job.Status(status)
	}
	if completedAt, ok := data["completed_at"]; ok {
		if t, err := time.Parse(time.RFC3339, completedAt); err == nil {
			n.CompletedAt = t
		}
	}
	if errMsg, ok := data["error"]; ok {
		n.Error = errMsg
	}
	return n, nil
}

// WaitForResult blocks until a result is available or timeout elapses,
// using Redis pub/sub rather than polling.
func (r *RedisBackend) WaitForResult(ctx context.Context, jobID string, timeout time.Duration) (*Notification, error) {
	if n, err := r.GetResult(ctx, jobID); err != nil {
		return nil, err
	} else if n != nil {
		return n, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pubsub := r.client.Subscribe(waitCtx, notifyChannel(jobID))
	defer pubsub.Close()

	select {
	case <-waitCtx.Done():
		return r.GetResult(ctx, jobID)
	case msg := <-pubsub.Channel():
		if msg != nil && msg.Payload == "ready" {
			return r.GetResult(ctx, jobID)
		}
	}
	return nil, nil
}

// DeleteResult removes a result from Redis.
func (r *RedisBackend) DeleteResult(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, resultKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (r *RedisBackend) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
