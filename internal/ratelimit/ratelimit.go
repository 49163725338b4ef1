package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms}
`

// Limiter is a Redis backed token bucket keyed per client.
type Limiter struct {
	rdb    redis.Scripter
	prefix string
	rate   float64
	burst  float64
	now    func() time.Time
	script *redis.Script
}

// New creates a limiter refilling rate tokens per second up to burst.
// A non-positive rate or burst disables limiting.
func New(rdb redis.Scripter, prefix string, rate, burst float64) *Limiter {
	if prefix == "" {
		prefix = "auth:ratelimit"
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		now:    time.Now,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Enabled reports whether the limiter rejects anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0 && l.burst > 0
}

// Allow takes one token from the bucket of key. When the bucket is empty it
// returns false and how long the caller should wait.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}

	now := l.now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.rate, l.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	wait := time.Duration(toInt64(values[1])) * time.Millisecond
	return allowed, wait, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
