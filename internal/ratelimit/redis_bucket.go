package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const writeKeyPrefix = "coverdesk:ratelimit:write:"

// writeBucketScript refills KEYS[1] by ARGV[1] tokens per millisecond up to
// ARGV[2] and takes one token. Replies {allowed, remaining, retry_after_ms}.
// Redis TIME is the clock so every replica refills alike.
const writeBucketScript = `
local per_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "refilled_at")
local tokens = tonumber(state[1]) or capacity
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(capacity, tokens + (now - last) * per_ms)
end

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.ceil((1 - tokens) / per_ms)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "refilled_at", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, math.floor(tokens), retry_ms}
`

// redisBucket keeps one write bucket per actor in a redis hash.
type redisBucket struct {
	client   redis.Scripter
	script   *redis.Script
	perMilli float64
	capacity int
	ttl      time.Duration
}

func newRedisBucket(client redis.Scripter, rate float64, burst int) *redisBucket {
	return &redisBucket{
		client:   client,
		script:   redis.NewScript(writeBucketScript),
		perMilli: rate / 1000,
		capacity: burst,
		ttl:      idleTTL(rate, burst),
	}
}

func (b *redisBucket) Take(ctx context.Context, actorID string) (Decision, error) {
	reply, err := b.script.Run(ctx, b.client, []string{writeKeyPrefix + actorID},
		b.perMilli, b.capacity, b.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("write bucket: unexpected reply %v", reply)
	}
	return Decision{
		Allowed:    reply[0] == 1,
		Limit:      b.capacity,
		Remaining:  int(reply[1]),
		RetryAfter: time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

// idleTTL keeps a bucket for twice the time it needs to refill from empty.
func idleTTL(rate float64, burst int) time.Duration {
	ttl := time.Duration(math.Ceil(2*float64(burst)/rate)) * time.Second
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
