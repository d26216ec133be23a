package storiesimpl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/media"
	"github.com/orgball2608/fary-stories/internal/metrics"
	"github.com/orgball2608/fary-stories/internal/repositories/story"
	"github.com/orgball2608/fary-stories/internal/stories"
	apperrors "github.com/orgball2608/fary-stories/pkg/errors"
)

const defaultMaxUploadBytes = 50 << 20

func (s *StoriesImpl) maxUpload() int64 {
	if s.Config.Stories.MaxUploadBytes > 0 {
		return s.Config.Stories.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (s *StoriesImpl) Publish(ctx context.Context, req stories.PublishRequest) (domain.StoryItem, error) {
	author := req.Author.SubjectKey()
	if author == "" {
		return domain.StoryItem{}, stories.ErrNotSignedIn
	}

	kind, ok := domain.MediaKindFromContentType(req.ContentType)
	if !ok {
		return domain.StoryItem{}, stories.ErrUnsupportedMedia
	}
	if req.Media == nil || req.Size == 0 {
		return domain.StoryItem{}, stories.ErrEmptyMedia
	}

	body, size, err := s.limitBody(req.Media, req.Size)
	if err != nil {
		return domain.StoryItem{}, err
	}

	if !s.Limiter.Allow(author) {
		s.Logger.Warn("Publish throttled", "wallet_address", author)
		return domain.StoryItem{}, stories.ErrPublishThrottled
	}

	now := s.Clock.Now().UTC()
	url, err := s.Store.Put(ctx, media.StorageKey(author, req.ContentType, now), body, size, req.ContentType)
	if err != nil {
		return domain.StoryItem{}, apperrors.WrapWithCode(err, "upload_failed", "failed to upload media")
	}

	item := domain.StoryItem{
		ID:              uuid.NewString(),
		SubjectKey:      author,
		CreatedAt:       now,
		MediaKind:       kind,
		MediaRef:        url,
		MediaDurationMs: max(req.MediaDurationMs, 0),
		DisplayAttrs:    req.Display,
		Tags:            normalizeTags(req.Tags),
	}
	if req.Author.FID > 0 {
		item.UserID = strconv.FormatInt(req.Author.FID, 10)
	}
	if kind == domain.MediaKindImage {
		item.MediaDurationMs = 0
	}

	if err := s.StoryRepo.Create(ctx, item); err != nil {
		if errors.Is(err, story.ErrAlreadyExists) {
			return domain.StoryItem{}, apperrors.WrapWithCode(apperrors.ErrConflict, "story_exists", "story already exists")
		}
		return domain.StoryItem{}, fmt.Errorf("failed to save story: %w", err)
	}

	metrics.ObservePublished(string(kind))
	s.Logger.Info("Story published", "story_id", item.ID, "wallet_address", author, "type", kind)
	s.announce(ctx, item)

	return item, nil
}

// limitBody enforces the upload cap. Bodies of unknown size are buffered.
func (s *StoriesImpl) limitBody(body io.Reader, size int64) (io.Reader, int64, error) {
	limit := s.maxUpload()
	if size > limit {
		return nil, 0, stories.ErrMediaTooLarge
	}
	if size > 0 {
		return body, size, nil
	}

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, 0, apperrors.WrapWithCode(apperrors.ErrBadRequest, "unreadable_media", "failed to read media")
	}
	if int64(len(data)) > limit {
		return nil, 0, stories.ErrMediaTooLarge
	}
	if len(data) == 0 {
		return nil, 0, stories.ErrEmptyMedia
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// announce runs the notifier on the worker pool; publishing never waits
// for or fails on it.
func (s *StoriesImpl) announce(ctx context.Context, item domain.StoryItem) {
	if s.Notifier == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	err := s.Pool.Submit(func() {
		ctx, cancel := context.WithTimeout(ctx, announceTimeout)
		defer cancel()

		if err := s.Notifier.StoryPublished(ctx, item); err != nil {
			s.Logger.Warn("Failed to announce story", "story_id", item.ID, "error", err)
		}
	})
	if err != nil {
		s.Logger.Warn("Failed to submit story announcement", "story_id", item.ID, "error", err)
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
