// Package lock provides a Redis-based distributed lock used to serialize
// single-instance housekeeping sweeps across processes. The per-job dedup
// lease is a separate SETNX key managed by internal/store.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript atomically deletes key only if it still holds our token,
// so a lock whose TTL already expired and was re-acquired by someone else
// is never deleted out from under them.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// extendScript atomically bumps the TTL only if we still hold the lock.
const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Lock represents a held distributed lock.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire attempts a SETNX-based lock. Returns (nil, nil) if the key is
// already held by someone else — that is the expected "duplicate in
// flight" case, not an error.
func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.New().String()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: client, key: key, token: token}, nil
}

// Release deletes the lock, but only if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend bumps the lock's TTL, failing if it is no longer ours.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.token, ttl.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", l.key, err)
	}
	if res == int64(0) {
		return fmt.Errorf("lock %s no longer held by this instance", l.key)
	}
	return nil
}

// Key returns the lock's Redis key.
func (l *Lock) Key() string { return l.key }
