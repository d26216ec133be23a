package cache

import (
	"context"

	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// New returns a Redis cache when REDIS_ADDR is set and a no-op cache otherwise.
func New(opts Opts) Cache {
	if opts.Config.Redis.Addr == "" {
		opts.Logger.Info("Redis not configured, profile cache disabled")
		return Noop{}
	}

	c := NewRedisCache(RedisConfig{
		Addr:     opts.Config.Redis.Addr,
		Password: opts.Config.Redis.Password,
		DB:       opts.Config.Redis.DB,
		Prefix:   "fary:",
	}, opts.Logger)

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// An unreachable Redis only costs cache misses.
			if err := c.Ping(ctx); err != nil {
				opts.Logger.Warn("Redis unavailable", "addr", opts.Config.Redis.Addr, "error", err)
				return nil
			}
			opts.Logger.Info("Connected to Redis", "addr", opts.Config.Redis.Addr, "db", opts.Config.Redis.DB)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c
}

var Module = fx.Module("cache", fx.Provide(New))
