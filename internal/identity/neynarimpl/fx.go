package neynarimpl

import (
	"github.com/orgball2608/fary-stories/internal/identity"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(
		fx.Annotate(
			New,
			fx.As(new(identity.Client)),
		),
	),
)
