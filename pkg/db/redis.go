package db

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/coverdesk/internal/config"
	"go.uber.org/fx"
)

var RedisModule = fx.Module("db.redis",
	fx.Provide(NewRedis),
)

// NewRedis returns nil when REDIS_ADDR is unset. Consumers fall back to
// in-process behaviour in that case.
func NewRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
