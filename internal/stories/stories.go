package stories

import (
	"context"
	"io"

	"github.com/orgball2608/fary-stories/internal/domain"
	apperrors "github.com/orgball2608/fary-stories/pkg/errors"
)

var (
	ErrStoryNotFound    = apperrors.WrapWithCode(apperrors.ErrNotFound, "story_not_found", "story not found")
	ErrNotAuthor        = apperrors.WrapWithCode(apperrors.ErrForbidden, "not_author", "only the author can do this")
	ErrNotSignedIn      = apperrors.WrapWithCode(apperrors.ErrUnauthorized, "not_signed_in", "sign in first")
	ErrUnsupportedMedia = apperrors.WrapWithCode(apperrors.ErrBadRequest, "unsupported_media", "only image and video files are allowed")
	ErrMediaTooLarge    = apperrors.WrapWithCode(apperrors.ErrBadRequest, "media_too_large", "media file is too large")
	ErrEmptyMedia       = apperrors.WrapWithCode(apperrors.ErrBadRequest, "empty_media", "media file is empty")
	ErrPublishThrottled = apperrors.WrapWithCode(apperrors.ErrTooManyRequests, "publish_rate_limited", "too many stories, try again later")
	ErrMissingSubject   = apperrors.WrapWithCode(apperrors.ErrBadRequest, "missing_subject", "wallet address is required")
	ErrMissingViewer    = apperrors.WrapWithCode(apperrors.ErrBadRequest, "missing_viewer_key", "viewer key is required")
	ErrInvalidSearch    = apperrors.WrapWithCode(apperrors.ErrBadRequest, "invalid_search", "invalid search parameters")
)

// PublishRequest is one uploaded story. Size may be -1 when unknown.
type PublishRequest struct {
	Author          domain.Identity
	Media           io.Reader
	Size            int64
	ContentType     string
	MediaDurationMs int64
	Display         domain.DisplayAttrs
	Tags            []string
}

//go:generate go run go.uber.org/mock/mockgen -source=stories.go -destination=mocks/mock.go

type Service interface {
	Publish(ctx context.Context, req PublishRequest) (domain.StoryItem, error)
	// ListLive returns the subject's live stories, newest first.
	ListLive(ctx context.Context, subjectKey string) ([]domain.StoryItem, error)
	// Feed groups live stories by subject; the subject with the most recent
	// story comes first. A viewer with a fid only sees the accounts they
	// follow plus their own stories; without one, or when the following list
	// is unavailable, every subject is included.
	Feed(ctx context.Context, viewer domain.Identity) ([]domain.StoryGroup, error)
	Get(ctx context.Context, id string) (domain.StoryItem, error)
	UpdateDisplay(ctx context.Context, id string, requester domain.Identity, attrs domain.DisplayAttrs) (domain.StoryItem, error)
	Delete(ctx context.Context, id string, requester domain.Identity) error
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.StoryItem, error)
	RecordView(ctx context.Context, storyID, viewerKey string) error
	ListViewers(ctx context.Context, storyID string, requester domain.Identity) ([]domain.Viewer, error)
	CountViews(ctx context.Context, storyID string) (int64, error)
	ScheduleCleanup(ctx context.Context) error
}
