package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/nuulab/disqueue/internal/job"
	"github.com/nuulab/disqueue/internal/logger"
	"github.com/nuulab/disqueue/internal/serialization"
	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/types/known/structpb"
)

// Lease durations for the dedup key. Processing leases are long enough to
// outlive any single handler invocation; done leases are kept around for
// a day so a late-arriving duplicate delivery is still recognized.
const (
	processingLeaseTTL = 1 * time.Hour
	doneLeaseTTL       = 24 * time.Hour
)

// RedisStore implements Store against a real Redis/DragonflyDB instance.
// Connection tuning mirrors the teacher's NewRedisQueue: a pool sized for
// many concurrent worker goroutines plus API traffic, generous read
// timeout to cover blocking XREAD calls, context timeouts honored.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore parses redisURL, applies pool tuning, and verifies
// connectivity with a Ping before returning.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.ConnMaxIdleTime = 10 * time.Minute
	opts.PoolTimeout = 5 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 8 * time.Millisecond
	opts.MaxRetryBackoff = 512 * time.Millisecond
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 10 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an already-constructed client, primarily
// so tests can point a RedisStore at a miniredis instance.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Enqueue writes job_status=queued and job_retries=0 in the same pipeline
// as the XADD, submitted together. Per this system's resolution of the
// enqueue-ordering open question, status and retry-count commands are
// queued ahead of the XADD so that if the pipeline only partially
// succeeds, the orphan case is a status entry with no stream entry
// (harmless - nothing will ever read it) rather than a stream entry with
// no status (which a consumer reading the stream would trip over).
func (s *RedisStore) Enqueue(ctx context.Context, stream, jobID string, payload job.Payload, priority job.Priority) bool {
	body, err := payload.Marshal()
	if err != nil {
		logger.Error("failed to marshal payload for enqueue", "job_id", jobID, "error", err)
		return false
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, statusHashKey, jobID, string(job.StatusQueued))
	pipe.HSet(ctx, retriesHashKey, jobID, 0)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"job_id":   jobID,
			"payload":  body,
			"priority": string(priority),
		},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Error("enqueue failed", "job_id", jobID, "stream", stream, "error", err)
		return false
	}
	return true
}

// ReadNext performs a short blocking XREAD for entries after cursor.
func (s *RedisStore) ReadNext(ctx context.Context, stream, cursor string) (string, map[string]string, bool) {
	if cursor == "" {
		cursor = "0"
	}

	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, cursor},
		Count:   1,
		Block:   1 * time.Second,
	}).Result()

	if err == redis.Nil {
		return "", nil, false
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, false
		}
		logger.Error("stream read failed", "stream", stream, "error", err)
		return "", nil, false
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", nil, false
	}

	msg := res[0].Messages[0]
	fields := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
		} else {
			fields[k] = fmt.Sprintf("%v", v)
		}
	}
	return msg.ID, fields, true
}

func (s *RedisStore) GetStatus(ctx context.Context, jobID string) (job.Status, bool) {
	val, err := s.client.HGet(ctx, statusHashKey, jobID).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		logger.Error("get status failed", "job_id", jobID, "error", err)
		return "", false
	}
	return job.Status(val), true
}

func (s *RedisStore) SetStatus(ctx context.Context, jobID string, status job.Status) bool {
	if err := s.client.HSet(ctx, statusHashKey, jobID, string(status)).Err(); err != nil {
		logger.Error("set status failed", "job_id", jobID, "status", status, "error", err)
		return false
	}
	return true
}

func (s *RedisStore) IncrAttempts(ctx context.Context, jobID string) (int, bool) {
	n, err := s.client.HIncrBy(ctx, retriesHashKey, jobID, 1).Result()
	if err != nil {
		logger.Error("incr attempts failed", "job_id", jobID, "error", err)
		return 0, false
	}
	return int(n), true
}

func (s *RedisStore) ClearAttempts(ctx context.Context, jobID string) bool {
	if err := s.client.HDel(ctx, retriesHashKey, jobID).Err(); err != nil {
		logger.Error("clear attempts failed", "job_id", jobID, "error", err)
		return false
	}
	return true
}

func (s *RedisStore) GetCursor(ctx context.Context, stream string) string {
	val, err := s.client.HGet(ctx, lastIDHashKey, stream).Result()
	if err == redis.Nil {
		return "0"
	}
	if err != nil {
		logger.Error("get cursor failed", "stream", stream, "error", err)
		return "0"
	}
	return val
}

func (s *RedisStore) SetCursor(ctx context.Context, stream, entryID string) bool {
	if err := s.client.HSet(ctx, lastIDHashKey, stream, entryID).Err(); err != nil {
		logger.Error("set cursor failed", "stream", stream, "error", err)
		return false
	}
	return true
}

func (s *RedisStore) ClearAllCursors(ctx context.Context) bool {
	if err := s.client.Del(ctx, lastIDHashKey).Err(); err != nil {
		logger.Error("clear all cursors failed", "error", err)
		return false
	}
	return true
}

// dlqSerializer encodes the DLQ envelope as a protobuf-framed structpb.Struct
// rather than hand-rolled JSON, so a downstream consumer reading job:dlq can
// decode it with any protobuf client regardless of language.
var dlqSerializer = serialization.NewProtobufSerializer()

func (s *RedisStore) SendToDLQ(ctx context.Context, jobID string, payload job.Payload, reason string) bool {
	body, err := payload.Marshal()
	if err != nil {
		logger.Error("failed to marshal payload for dlq", "job_id", jobID, "error", err)
		return false
	}

	envelope, err := structpb.NewStruct(map[string]interface{}{
		"job_id":  jobID,
		"payload": body,
		"reason":  reason,
	})
	if err != nil {
		logger.Error("failed to build dlq envelope", "job_id", jobID, "error", err)
		return false
	}
	encoded, err := dlqSerializer.Marshal(envelope)
	if err != nil {
		logger.Error("failed to encode dlq envelope", "job_id", jobID, "error", err)
		return false
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStream,
		Values: map[string]interface{}{
			"job_id":   jobID,
			"payload":  body,
			"reason":   reason,
			"envelope": base64.StdEncoding.EncodeToString(encoded),
		},
	}).Err()
	if err != nil {
		logger.Error("send to dlq failed", "job_id", jobID, "error", err)
		return false
	}
	return true
}

// Cancel requires a status entry to already exist (HExists), then
// unconditionally overwrites it to cancelled - it does not itself check
// that the current status is cancellable, matching this system's accepted
// cancel-race-at-dispatch design: a job may already have moved to
// in_progress by the time this call lands, in which case the job still
// runs to completion and the cancellation is effectively a no-op.
func (s *RedisStore) Cancel(ctx context.Context, jobID string) bool {
	exists, err := s.client.HExists(ctx, statusHashKey, jobID).Result()
	if err != nil {
		logger.Error("cancel: status lookup failed", "job_id", jobID, "error", err)
		return false
	}
	if !exists {
		return false
	}
	return s.SetStatus(ctx, jobID, job.StatusCancelled)
}

func (s *RedisStore) AcquireDedup(ctx context.Context, jobID string) bool {
	ok, err := s.client.SetNX(ctx, dedupKey(jobID), "processing", processingLeaseTTL).Result()
	if err != nil {
		logger.Error("acquire dedup failed", "job_id", jobID, "error", err)
		return false
	}
	return ok
}

func (s *RedisStore) MarkDedupDone(ctx context.Context, jobID string) bool {
	if err := s.client.Set(ctx, dedupKey(jobID), "done", doneLeaseTTL).Err(); err != nil {
		logger.Error("mark dedup done failed", "job_id", jobID, "error", err)
		return false
	}
	return true
}

func (s *RedisStore) ReleaseDedup(ctx context.Context, jobID string) bool {
	if err := s.client.Del(ctx, dedupKey(jobID)).Err(); err != nil {
		logger.Error("release dedup failed", "job_id", jobID, "error", err)
		return false
	}
	return true
}

// StreamDepth reports the current length of stream.
func (s *RedisStore) StreamDepth(ctx context.Context, stream string) (int64, bool) {
	n, err := s.client.XLen(ctx, stream).Result()
	if err != nil {
		logger.Error("stream depth failed", "stream", stream, "error", err)
		return 0, false
	}
	return n, true
}

// ReadDLQEntries reads up to limit entries from the dead-letter stream
// after cursor. Malformed payloads are skipped rather than failing the
// whole batch.
func (s *RedisStore) ReadDLQEntries(ctx context.Context, cursor string, limit int64) ([]DLQEntry, bool) {
	if cursor == "" {
		cursor = "0"
	}
	res, err := s.client.XRange(ctx, dlqStream, "("+cursor, "+").Result()
	if err != nil {
		logger.Error("dlq read failed", "error", err)
		return nil, false
	}

	entries := make([]DLQEntry, 0, len(res))
	for i, msg := range res {
		if int64(i) >= limit && limit > 0 {
			break
		}
		jobID, _ := msg.Values["job_id"].(string)
		reason, _ := msg.Values["reason"].(string)
		rawPayload, _ := msg.Values["payload"].(string)

		payload, err := job.UnmarshalPayload(rawPayload)
		if err != nil {
			logger.Warn("skipping malformed dlq entry", "entry_id", msg.ID, "error", err)
			continue
		}
		entries = append(entries, DLQEntry{EntryID: msg.ID, JobID: jobID, Payload: payload, Reason: reason})
	}
	return entries, true
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
