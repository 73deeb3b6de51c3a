package ratelimit

import (
	"github.com/chartschool/chartschool/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit",
	fx.Provide(NewRedisClient),
	fx.Provide(NewTokenBucket),
	fx.Provide(ProvidePacer),
)

// NewRedisClient returns nil when redis is not configured; the token
// bucket degrades to allow-all.
func NewRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Named("ratelimit").Info("redis not configured, endpoint rate limiting disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func ProvidePacer(cfg config.Config) Pacer {
	return NewPacer(cfg.ProvisionPaceInterval)
}
