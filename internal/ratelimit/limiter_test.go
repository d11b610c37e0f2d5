package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBucket struct {
	actors []string
	left   int
}

func (b *countingBucket) Take(_ context.Context, actorID string) (Decision, error) {
	b.actors = append(b.actors, actorID)
	if b.left <= 0 {
		return Decision{Allowed: false, Limit: 2, RetryAfter: time.Second}, nil
	}
	b.left--
	return Decision{Allowed: true, Limit: 2, Remaining: b.left}, nil
}

func TestNilLimiterAllows(t *testing.T) {
	var l *WriteLimiter
	res, err := l.AllowActor(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, l.Enabled())
	assert.Nil(t, NewWithBucket(nil))
}

func TestDisabledOrWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: false}}
	assert.Nil(t, NewWriteLimiter(cfg, nil))

	cfg.RateLimit.Enabled = true
	assert.Nil(t, NewWriteLimiter(cfg, nil))
}

func TestWriteLimiterSourcesLimitsFromConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}
	l := NewWriteLimiter(cfg, client)
	require.True(t, l.Enabled())
	b, ok := l.bucket.(*redisBucket)
	require.True(t, ok)
	assert.Equal(t, defaultWriteBurst, b.capacity)
	assert.InDelta(t, 0.005, b.perMilli, 1e-9)
	assert.Equal(t, 8*time.Second, b.ttl)

	cfg.RateLimit.WriteRate = 0.5
	cfg.RateLimit.WriteBurst = 3
	b = NewWriteLimiter(cfg, client).bucket.(*redisBucket)
	assert.Equal(t, 3, b.capacity)
	assert.InDelta(t, 0.0005, b.perMilli, 1e-9)
	assert.Equal(t, 12*time.Second, b.ttl)
}

func TestAllowActorTakesPerActor(t *testing.T) {
	b := &countingBucket{left: 1}
	l := NewWithBucket(b)
	ctx := context.Background()

	res, err := l.AllowActor(ctx, " 42 ")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.AllowActor(ctx, "42")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	res, err = l.AllowActor(ctx, "  ")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	assert.Equal(t, []string{"42", "42"}, b.actors)
}

func TestIdleTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, idleTTL(5, 20))
	assert.Equal(t, time.Second, idleTTL(100, 1))
}
