package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/auth"
	"github.com/orgball2608/fary-stories/internal/cache"
	"github.com/orgball2608/fary-stories/internal/httpapi"
	identity "github.com/orgball2608/fary-stories/internal/identity/neynarimpl"
	"github.com/orgball2608/fary-stories/internal/media/s3impl"
	"github.com/orgball2608/fary-stories/internal/migrations"
	"github.com/orgball2608/fary-stories/internal/notify"
	neynarnotify "github.com/orgball2608/fary-stories/internal/notify/neynarimpl"
	"github.com/orgball2608/fary-stories/internal/notify/telegramimpl"
	"github.com/orgball2608/fary-stories/internal/ratelimit"
	repositories "github.com/orgball2608/fary-stories/internal/repositories/fx"
	"github.com/orgball2608/fary-stories/internal/stories"
	"github.com/orgball2608/fary-stories/internal/stories/storiesimpl"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/pgx"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		newClock,
		newPool,
		newPublishLimiter,
	),
	fx.Invoke(runMigrations),
	repositories.Module,
	cache.Module,
	s3impl.Module,
	identity.Module,
	notify.Module,
	neynarnotify.Module,
	telegramimpl.Module,
	auth.Module,
	storiesimpl.Module,
	httpapi.Module,
	fx.Invoke(run),
)

func newClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// newPool backs story announcements.
func newPool(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (*ants.Pool, error) {
	size := cfg.Stories.Workers
	if size <= 0 {
		size = 8
	}
	pool, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			timeout := 10 * time.Second
			if deadline, ok := ctx.Deadline(); ok {
				timeout = time.Until(deadline)
			}
			if err := pool.ReleaseTimeout(timeout); err != nil {
				log.Warn("Worker pool did not drain", "error", err)
			}
			return nil
		},
	})
	return pool, nil
}

func newPublishLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.Stories.PublishPerHour <= 0 {
		return ratelimit.Unlimited{}
	}
	return ratelimit.NewInMemoryLimiter(cfg.Stories.PublishPerHour, time.Hour, cfg.Stories.PublishBurst)
}

// runMigrations applies the schema before the pool is used.
func runMigrations(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := migrations.Up(ctx, cfg.GetDSN()); err != nil {
				return err
			}
			log.Info("Database migrations applied")
			return nil
		},
	})
}

func run(lc fx.Lifecycle, log logger.Logger, svc stories.Service) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := svc.ScheduleCleanup(ctx); err != nil {
				log.Error("Failed to schedule story cleanup", "error", err)
				return err
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
