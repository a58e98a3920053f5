package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/redis/go-redis/v9"
)

// hitScript performs the fixed-window check and increment in one round trip.
// KEYS[1] window hash; ARGV now_ms, window_ms, max. Returns {start_ms, count, allowed}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local win = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local cur = redis.call('HMGET', KEYS[1], 'start', 'count')
local start = tonumber(cur[1])
local count = tonumber(cur[2])
if (not start) or (now > start + win) then
  redis.call('HSET', KEYS[1], 'start', now, 'count', 1)
  redis.call('PEXPIRE', KEYS[1], win * 2)
  return {now, 1, 1}
end
if count >= max then
  return {start, count, 0}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {start, count, 1}
`)

// RedisWindowStore keeps rate windows in Redis so limits hold across replicas
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

// NewRedisWindowStore creates a window store on top of a Redis client
func NewRedisWindowStore(rdb redis.Scripter, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "ratelimit:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Hit(ctx context.Context, identifier string, length time.Duration, max int, now time.Time) (models.RateWindow, bool, error) {
	key := s.prefix + ":" + identifier

	vals, err := hitScript.Run(ctx, s.rdb, []string{key}, now.UnixMilli(), length.Milliseconds(), max).Int64Slice()
	if err != nil {
		return models.RateWindow{}, false, fmt.Errorf("rate window script: %w", err)
	}
	if len(vals) != 3 {
		return models.RateWindow{}, false, fmt.Errorf("rate window script: unexpected reply %v", vals)
	}

	window := models.RateWindow{
		Identifier:  identifier,
		WindowStart: time.UnixMilli(vals[0]),
		Count:       int(vals[1]),
	}
	return window, vals[2] == 1, nil
}
