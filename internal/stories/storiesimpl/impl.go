package storiesimpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/expiry"
	"github.com/orgball2608/fary-stories/internal/identity"
	"github.com/orgball2608/fary-stories/internal/media"
	"github.com/orgball2608/fary-stories/internal/metrics"
	"github.com/orgball2608/fary-stories/internal/notify"
	"github.com/orgball2608/fary-stories/internal/ratelimit"
	"github.com/orgball2608/fary-stories/internal/repositories/story"
	"github.com/orgball2608/fary-stories/internal/repositories/viewer"
	"github.com/orgball2608/fary-stories/internal/stories"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	announceTimeout    = 30 * time.Second
	cleanupTimeout     = 5 * time.Minute
)

type Opts struct {
	fx.In

	StoryRepo  story.Repository
	ViewerRepo viewer.Repository
	Store      media.Store
	Identity   identity.Client
	Notifier   notify.Notifier
	Limiter    ratelimit.Limiter
	Pool       *ants.Pool
	Clock      clockwork.Clock
	Logger     logger.Logger
	Config     *config.Config
}

type StoriesImpl struct {
	StoryRepo  story.Repository
	ViewerRepo viewer.Repository
	Store      media.Store
	Identity   identity.Client
	Notifier   notify.Notifier
	Limiter    ratelimit.Limiter
	Pool       *ants.Pool
	Clock      clockwork.Clock
	Logger     logger.Logger
	Config     *config.Config
}

func New(opts Opts) *StoriesImpl {
	return &StoriesImpl{
		StoryRepo:  opts.StoryRepo,
		ViewerRepo: opts.ViewerRepo,
		Store:      opts.Store,
		Identity:   opts.Identity,
		Notifier:   opts.Notifier,
		Limiter:    opts.Limiter,
		Pool:       opts.Pool,
		Clock:      opts.Clock,
		Logger:     opts.Logger.WithComponent("Stories"),
		Config:     opts.Config,
	}
}

var _ stories.Service = (*StoriesImpl)(nil)

func (s *StoriesImpl) ttl() time.Duration {
	if s.Config.Stories.TTL > 0 {
		return s.Config.Stories.TTL
	}
	return expiry.DefaultTTL
}

// find loads a story. Expired stories are reported as missing when liveOnly
// is set.
func (s *StoriesImpl) find(ctx context.Context, id string, liveOnly bool) (domain.StoryItem, error) {
	if id == "" {
		return domain.StoryItem{}, stories.ErrStoryNotFound
	}

	item, err := s.StoryRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return domain.StoryItem{}, stories.ErrStoryNotFound
		}
		return domain.StoryItem{}, fmt.Errorf("failed to load story: %w", err)
	}

	if liveOnly && expiry.IsExpired(*item, s.Clock.Now(), s.ttl()) {
		return domain.StoryItem{}, stories.ErrStoryNotFound
	}
	return *item, nil
}

// ScheduleCleanup purges stories past ttl+retention every cleanup interval
// until ctx is done.
func (s *StoriesImpl) ScheduleCleanup(ctx context.Context) error {
	interval := s.Config.Stories.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.Clock))
	if err != nil {
		return fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}

			cleanupCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
			defer cancel()

			if _, err := s.Cleanup(cleanupCtx); err != nil {
				s.Logger.Error("Failed to clean up expired stories", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story cleanup: %w", err)
	}

	scheduler.Start()
	s.Logger.Info("Story cleanup scheduled", "interval", interval.String())

	go func() {
		<-ctx.Done()
		s.Logger.Info("Stopping story cleanup scheduler")
		if err := scheduler.Shutdown(); err != nil {
			s.Logger.Error("Failed to shut down cleanup scheduler", "error", err)
		}
	}()

	return nil
}

// Cleanup deletes stories older than ttl+retention. Viewer rows cascade.
func (s *StoriesImpl) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.Clock.Now().Add(-(s.ttl() + s.Config.Stories.Retention))

	deleted, err := s.StoryRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.ObserveCleanup(deleted)
	s.Logger.Info("Story cleanup completed", "rows_deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}

var Module = fx.Module("stories",
	fx.Provide(
		fx.Annotate(
			New,
			fx.As(new(stories.Service)),
		),
	),
)
