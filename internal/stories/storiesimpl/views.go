package storiesimpl

import (
	"context"
	"errors"
	"fmt"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/metrics"
	"github.com/orgball2608/fary-stories/internal/repositories/viewer"
	"github.com/orgball2608/fary-stories/internal/stories"
	"golang.org/x/sync/errgroup"
)

// RecordView appends to the viewer ledger. Repeat views by the same viewer
// are accepted and not counted again.
func (s *StoriesImpl) RecordView(ctx context.Context, storyID, viewerKey string) error {
	viewerKey = domain.NormalizeSubjectKey(viewerKey)
	if viewerKey == "" {
		return stories.ErrMissingViewer
	}

	if _, err := s.find(ctx, storyID, false); err != nil {
		return err
	}

	created, err := s.ViewerRepo.Record(ctx, domain.ViewerRecord{
		StoryID:   storyID,
		ViewerKey: viewerKey,
		ViewedAt:  s.Clock.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, viewer.ErrStoryNotFound) {
			return stories.ErrStoryNotFound
		}
		metrics.ObserveViewRecorded("failed")
		return fmt.Errorf("failed to record view: %w", err)
	}

	if created {
		metrics.ObserveViewRecorded("recorded")
	} else {
		metrics.ObserveViewRecorded("duplicate")
	}
	return nil
}

// ListViewers is author only. Profiles are attached to Farcaster viewers
// when the identity service answers; otherwise bare keys are returned.
func (s *StoriesImpl) ListViewers(ctx context.Context, storyID string, requester domain.Identity) ([]domain.Viewer, error) {
	if requester.SubjectKey() == "" {
		return nil, stories.ErrNotSignedIn
	}

	var (
		item    domain.StoryItem
		records []domain.ViewerRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		item, err = s.find(gctx, storyID, false)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.ViewerRepo.ListByStory(gctx, storyID)
		if err != nil {
			return fmt.Errorf("failed to list viewers: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !item.IsAuthoredBy(requester.SubjectKey()) {
		return nil, stories.ErrNotAuthor
	}

	viewers := make([]domain.Viewer, 0, len(records))
	fids := make([]int64, 0, len(records))
	for _, r := range records {
		viewers = append(viewers, domain.Viewer{ViewerKey: r.ViewerKey, ViewedAt: r.ViewedAt})
		if fid, ok := domain.FIDFromViewerKey(r.ViewerKey); ok {
			fids = append(fids, fid)
		}
	}
	if len(fids) == 0 || s.Identity == nil {
		return viewers, nil
	}

	profiles, err := s.Identity.LookupProfiles(ctx, fids)
	if err != nil {
		s.Logger.Warn("Failed to look up viewer profiles", "story_id", storyID, "fids", len(fids), "error", err)
		return viewers, nil
	}

	for i := range viewers {
		fid, ok := domain.FIDFromViewerKey(viewers[i].ViewerKey)
		if !ok {
			continue
		}
		if p, ok := profiles[fid]; ok {
			viewers[i].Profile = &p
		}
	}
	return viewers, nil
}

func (s *StoriesImpl) CountViews(ctx context.Context, storyID string) (int64, error) {
	n, err := s.ViewerRepo.CountByStory(ctx, storyID)
	if err != nil {
		return 0, fmt.Errorf("failed to count views: %w", err)
	}
	return n, nil
}
