package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coverdesk/internal/config"
)

const (
	defaultWriteRate  = 5.0
	defaultWriteBurst = 20
)

// Decision is the outcome of one write attempt.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Bucket takes one write token for an actor.
type Bucket interface {
	Take(ctx context.Context, actorID string) (Decision, error)
}

// WriteLimiter throttles mutating API calls per user. A nil *WriteLimiter
// allows everything.
type WriteLimiter struct {
	bucket Bucket
}

// NewWriteLimiter returns nil when limiting is off or no redis is configured.
func NewWriteLimiter(cfg config.Config, client *redis.Client) *WriteLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil
	}
	rate, burst := limitCfg.WriteRate, limitCfg.WriteBurst
	if rate <= 0 {
		rate = defaultWriteRate
	}
	if burst <= 0 {
		burst = defaultWriteBurst
	}
	return NewWithBucket(newRedisBucket(client, rate, burst))
}

func NewWithBucket(b Bucket) *WriteLimiter {
	if b == nil {
		return nil
	}
	return &WriteLimiter{bucket: b}
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil
}

// AllowActor takes a write token for actorID. Calls without an actor are not
// limited here; ActorRequired rejects them first.
func (l *WriteLimiter) AllowActor(ctx context.Context, actorID string) (Decision, error) {
	actorID = strings.TrimSpace(actorID)
	if !l.Enabled() || actorID == "" {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, actorID)
}
