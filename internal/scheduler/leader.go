package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaderKey = "coverdesk:scheduler:leader"

// Leader elects the single replica allowed to run a pass.
type Leader interface {
	// Acquire returns a release func when this replica holds the lock.
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLeader always wins. It is used when no Redis is configured.
type LocalLeader struct{}

func (LocalLeader) Acquire(context.Context, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

type RedisLeader struct {
	locker *redislock.Client
	log    *zap.Logger
}

func NewRedisLeader(client *redis.Client, log *zap.Logger) *RedisLeader {
	return &RedisLeader{locker: redislock.New(client), log: log}
}

func (l *RedisLeader) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	lock, err := l.locker.Obtain(ctx, leaderKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return func() {
		// A fresh context so a cancelled pass still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("release scheduler lock", zap.Error(err))
		}
	}, true, nil
}

// NewLeader uses the redis lock when a client is configured.
func NewLeader(client *redis.Client, log *zap.Logger) Leader {
	if client == nil {
		return LocalLeader{}
	}
	return NewRedisLeader(client, log.Named("scheduler.leader"))
}
