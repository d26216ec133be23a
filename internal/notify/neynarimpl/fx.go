package neynarimpl

import (
	"github.com/orgball2608/fary-stories/internal/notify"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
}

// NewSink is nil when no Neynar API key is configured.
func NewSink(opts Opts) notify.Notifier {
	if opts.Config.Neynar.APIKey == "" {
		return nil
	}
	return New(opts.Config.Neynar.BaseURL, opts.Config.Neynar.APIKey, opts.Config.App.PublicURL, opts.Logger)
}

var Module = fx.Module("neynar_notify",
	fx.Provide(
		fx.Annotate(
			NewSink,
			fx.ResultTags(`group:"notify_sinks"`),
		),
	),
)
