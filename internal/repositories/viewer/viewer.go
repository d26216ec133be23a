package viewer

import (
	"context"
	"errors"

	"github.com/orgball2608/fary-stories/internal/domain"
)

var ErrStoryNotFound = errors.New("viewed story not found")

//go:generate go run go.uber.org/mock/mockgen -source=viewer.go -destination=mocks/mock.go

// Repository is the viewer ledger: at most one row per (story, viewer).
type Repository interface {
	// Record reports whether a new row was written.
	Record(ctx context.Context, record domain.ViewerRecord) (bool, error)
	ListByStory(ctx context.Context, storyID string) ([]domain.ViewerRecord, error)
	CountByStory(ctx context.Context, storyID string) (int64, error)
}
