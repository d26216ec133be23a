package telegramimpl

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

// NewSink is nil unless both the bot token and the channel are configured.
// A bot that cannot be created only disables the sink.
func NewSink(opts Opts) notify.Notifier {
	tg := opts.Config.Telegram
	if tg.Token == "" || tg.Channel == "" {
		return nil
	}
	ch, err := New(tg.Token, tg.Channel, opts.Config.App.PublicURL, opts.Logger)
	if err != nil {
		opts.Logger.Error("Error creating bot", "error", err)
		return nil
	}
	return ch
}

var Module = fx.Module("telegram_notify",
	fx.Provide(
		fx.Annotate(
			NewSink,
			fx.ResultTags(`group:"notify_sinks"`),
		),
	),
)
