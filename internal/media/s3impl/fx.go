package s3impl

import (
	"github.com/orgball2608/fary-stories/internal/media"
	"go.uber.org/fx"
)

var Module = fx.Module("media",
	fx.Provide(
		fx.Annotate(
			New,
			fx.As(new(media.Store)),
		),
	),
)
