package fx

import (
	"github.com/orgball2608/fary-stories/internal/repositories"
	"github.com/orgball2608/fary-stories/internal/repositories/story"
	"github.com/orgball2608/fary-stories/internal/repositories/viewer"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(repositories.NewDB),
	story.Module,
	viewer.Module,
)
