package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixed-window counter state lives in a Redis hash so count and window start
// travel together. The scripts keep rollover + mutation atomic server-side,
// which makes the counters safe to share between replicated instances.
var checkScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local window_ms = tonumber(ARGV[2])

    local state = redis.call('HMGET', key, 'count', 'window_started_ms')
    local count = tonumber(state[1])
    local started = tonumber(state[2])

    if count == nil or started == nil or (now_ms - started) >= window_ms then
        count = 0
        started = now_ms
        redis.call('HMSET', key, 'count', count, 'window_started_ms', started)
        redis.call('PEXPIRE', key, window_ms)
    end

    return { count, started }
`)

var incrScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local window_ms = tonumber(ARGV[2])

    local state = redis.call('HMGET', key, 'count', 'window_started_ms')
    local count = tonumber(state[1])
    local started = tonumber(state[2])

    if count == nil or started == nil or (now_ms - started) >= window_ms then
        count = 0
        started = now_ms
    end

    count = count + 1
    redis.call('HMSET', key, 'count', count, 'window_started_ms', started)
    redis.call('PEXPIRE', key, window_ms)

    return { count, started }
`)

// RedisStore is the shared-store implementation of Store. Keys expire via
// PEXPIRE so Cleanup is a no-op; Redis evicts dead windows on its own.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. The prefix namespaces limiter keys
// away from other application data.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(key string) string { return s.prefix + ":" + key }

func runWindowScript(ctx context.Context, script *redis.Script, rdb *redis.Client, key string, window time.Duration, now time.Time) (Snapshot, error) {
	vals, err := script.Run(ctx, rdb, []string{key}, now.UnixMilli(), window.Milliseconds()).Result()
	if err != nil {
		return Snapshot{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Snapshot{WindowStartedAt: now}, nil
	}
	return Snapshot{
		Count:           int(asInt64(arr[0])),
		WindowStartedAt: time.UnixMilli(asInt64(arr[1])).UTC(),
	}, nil
}

// Check implements Store.
func (s *RedisStore) Check(ctx context.Context, key string, window time.Duration, now time.Time) (Snapshot, error) {
	return runWindowScript(ctx, checkScript, s.rdb, s.key(key), window, now)
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Snapshot, error) {
	return runWindowScript(ctx, incrScript, s.rdb, s.key(key), window, now)
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// Cleanup implements Store. Entries carry a PEXPIRE equal to their own
// window, so there is nothing to sweep manually.
func (s *RedisStore) Cleanup(context.Context, time.Time) error { return nil }

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}
