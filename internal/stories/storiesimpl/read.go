package storiesimpl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/expiry"
	"github.com/orgball2608/fary-stories/internal/identity"
	"github.com/orgball2608/fary-stories/internal/repositories/story"
	"github.com/orgball2608/fary-stories/internal/stories"
)

func (s *StoriesImpl) ListLive(ctx context.Context, subjectKey string) ([]domain.StoryItem, error) {
	subjectKey = domain.NormalizeSubjectKey(subjectKey)
	if subjectKey == "" {
		return nil, stories.ErrMissingSubject
	}

	items, err := s.StoryRepo.ListBySubject(ctx, subjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return expiry.FilterLive(items, s.Clock.Now(), s.ttl()), nil
}

func (s *StoriesImpl) Feed(ctx context.Context, viewer domain.Identity) ([]domain.StoryGroup, error) {
	now := s.Clock.Now()

	items, err := s.StoryRepo.ListSince(ctx, expiry.Cutoff(now, s.ttl()))
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	groups := groupBySubject(expiry.FilterLive(items, now, s.ttl()))

	if viewer.FID <= 0 {
		return groups, nil
	}
	following, err := s.Identity.Following(ctx, viewer.FID)
	if err != nil {
		if errors.Is(err, identity.ErrNotConfigured) {
			s.Logger.Debug("Following unavailable, serving unfiltered feed", "fid", viewer.FID)
		} else {
			s.Logger.Warn("Failed to load following, serving unfiltered feed", "fid", viewer.FID, "error", err)
		}
		return groups, nil
	}

	return followedGroups(groups, following, viewer.SubjectKey()), nil
}

// followedGroups keeps the viewer's own group and the groups of followed
// accounts, each carrying the followed profile.
func followedGroups(groups []domain.StoryGroup, following []domain.Profile, self string) []domain.StoryGroup {
	byWallet := make(map[string]domain.Profile, len(following))
	for _, p := range following {
		if p.WalletAddress != "" {
			byWallet[p.WalletAddress] = p
		}
	}

	out := make([]domain.StoryGroup, 0, len(groups))
	for _, g := range groups {
		if p, ok := byWallet[g.SubjectKey]; ok {
			g.Profile = &p
		} else if self == "" || g.SubjectKey != self {
			continue
		}
		out = append(out, g)
	}
	return out
}

// groupBySubject keeps the input order, so newest-first items give
// groups ordered by their newest story.
func groupBySubject(items []domain.StoryItem) []domain.StoryGroup {
	groups := make([]domain.StoryGroup, 0)
	index := make(map[string]int)
	for _, item := range items {
		i, ok := index[item.SubjectKey]
		if !ok {
			i = len(groups)
			index[item.SubjectKey] = i
			groups = append(groups, domain.StoryGroup{SubjectKey: item.SubjectKey})
		}
		groups[i].Stories = append(groups[i].Stories, item)
	}
	return groups
}

func (s *StoriesImpl) Get(ctx context.Context, id string) (domain.StoryItem, error) {
	return s.find(ctx, id, true)
}

func (s *StoriesImpl) UpdateDisplay(ctx context.Context, id string, requester domain.Identity, attrs domain.DisplayAttrs) (domain.StoryItem, error) {
	item, err := s.find(ctx, id, true)
	if err != nil {
		return domain.StoryItem{}, err
	}
	if !item.IsAuthoredBy(requester.SubjectKey()) {
		return domain.StoryItem{}, stories.ErrNotAuthor
	}

	if err := s.StoryRepo.UpdateDisplay(ctx, id, attrs); err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return domain.StoryItem{}, stories.ErrStoryNotFound
		}
		return domain.StoryItem{}, fmt.Errorf("failed to update story: %w", err)
	}

	item.DisplayAttrs = attrs
	return item, nil
}

func (s *StoriesImpl) Delete(ctx context.Context, id string, requester domain.Identity) error {
	item, err := s.find(ctx, id, false)
	if err != nil {
		return err
	}
	if !item.IsAuthoredBy(requester.SubjectKey()) {
		return stories.ErrNotAuthor
	}

	if err := s.StoryRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return stories.ErrStoryNotFound
		}
		return fmt.Errorf("failed to delete story: %w", err)
	}

	s.Logger.Info("Story deleted", "story_id", id, "wallet_address", item.SubjectKey)
	return nil
}

// Search never returns expired stories, whatever the date range.
func (s *StoriesImpl) Search(ctx context.Context, q domain.SearchQuery) ([]domain.StoryItem, error) {
	switch q.DateRange {
	case "":
		q.DateRange = domain.DateRangeAll
	case domain.DateRangeAll, domain.DateRangeToday, domain.DateRangeWeek, domain.DateRangeMonth:
	default:
		return nil, stories.ErrInvalidSearch
	}

	switch q.SortBy {
	case "":
		q.SortBy = domain.SortNewest
	case domain.SortNewest, domain.SortOldest, domain.SortSubject:
	default:
		return nil, stories.ErrInvalidSearch
	}

	switch {
	case q.Limit == 0:
		q.Limit = defaultSearchLimit
	case q.Limit > maxSearchLimit:
		q.Limit = maxSearchLimit
	}

	now := s.Clock.Now()
	q.Query = strings.TrimSpace(q.Query)
	q.Tags = normalizeTags(q.Tags)
	q.Since = q.DateRange.RangeStart(now)
	if cutoff := expiry.Cutoff(now, s.ttl()); q.Since.Before(cutoff) {
		q.Since = cutoff
	}

	items, err := s.StoryRepo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search stories: %w", err)
	}
	return expiry.FilterLive(items, now, s.ttl()), nil
}
