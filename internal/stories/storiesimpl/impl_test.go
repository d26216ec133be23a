package storiesimpl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/identity"
	mock_identity "github.com/orgball2608/fary-stories/internal/identity/mocks"
	mock_media "github.com/orgball2608/fary-stories/internal/media/mocks"
	mock_notify "github.com/orgball2608/fary-stories/internal/notify/mocks"
	mock_ratelimit "github.com/orgball2608/fary-stories/internal/ratelimit/mocks"
	"github.com/orgball2608/fary-stories/internal/repositories/story"
	mock_story "github.com/orgball2608/fary-stories/internal/repositories/story/mocks"
	"github.com/orgball2608/fary-stories/internal/repositories/viewer"
	mock_viewer "github.com/orgball2608/fary-stories/internal/repositories/viewer/mocks"
	"github.com/orgball2608/fary-stories/internal/stories"
	"github.com/orgball2608/fary-stories/pkg/config"
	apperrors "github.com/orgball2608/fary-stories/pkg/errors"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *StoriesImpl
	clock    *clockwork.FakeClock
	stories  *mock_story.MockRepository
	viewers  *mock_viewer.MockRepository
	store    *mock_media.MockStore
	identity *mock_identity.MockClient
	notifier *mock_notify.MockNotifier
	limiter  *mock_ratelimit.MockLimiter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	cfg := &config.Config{}
	cfg.Stories.TTL = 24 * time.Hour
	cfg.Stories.Retention = 24 * time.Hour
	cfg.Stories.MaxUploadBytes = 16

	f := &fixture{
		clock:    clockwork.NewFakeClockAt(now),
		stories:  mock_story.NewMockRepository(ctrl),
		viewers:  mock_viewer.NewMockRepository(ctrl),
		store:    mock_media.NewMockStore(ctrl),
		identity: mock_identity.NewMockClient(ctrl),
		notifier: mock_notify.NewMockNotifier(ctrl),
		limiter:  mock_ratelimit.NewMockLimiter(ctrl),
	}
	f.svc = New(Opts{
		StoryRepo:  f.stories,
		ViewerRepo: f.viewers,
		Store:      f.store,
		Identity:   f.identity,
		Notifier:   f.notifier,
		Limiter:    f.limiter,
		Pool:       pool,
		Clock:      f.clock,
		Logger:     logger.NewNop(),
		Config:     cfg,
	})
	return f
}

func storyAt(id, subject string, age time.Duration) domain.StoryItem {
	return domain.StoryItem{
		ID:         id,
		SubjectKey: subject,
		CreatedAt:  now.Add(-age),
		MediaKind:  domain.MediaKindImage,
		MediaRef:   "https://gw/ipfs/" + id,
	}
}

func TestPublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	announced := make(chan domain.StoryItem, 1)

	f.limiter.EXPECT().Allow("0xabc").Return(true)
	f.store.EXPECT().
		Put(ctx, gomock.Any(), gomock.Any(), int64(5), "video/mp4").
		DoAndReturn(func(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
			assert.True(t, strings.HasPrefix(key, "stories/0xabc/2026/03/15/"), key)
			return "https://gw/ipfs/cid", nil
		})
	f.stories.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	f.notifier.EXPECT().StoryPublished(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, item domain.StoryItem) error {
			announced <- item
			return errors.New("sink down")
		})

	item, err := f.svc.Publish(ctx, stories.PublishRequest{
		Author:          domain.Identity{WalletAddress: "0xABC", FID: 7},
		Media:           strings.NewReader("video"),
		Size:            5,
		ContentType:     "video/mp4",
		MediaDurationMs: 4200,
		Display:         domain.DisplayAttrs{Text: "gm"},
		Tags:            []string{"#GM", " gm ", "", "base"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "0xabc", item.SubjectKey)
	assert.Equal(t, "7", item.UserID)
	assert.Equal(t, now, item.CreatedAt)
	assert.Equal(t, domain.MediaKindVideo, item.MediaKind)
	assert.Equal(t, "https://gw/ipfs/cid", item.MediaRef)
	assert.EqualValues(t, 4200, item.MediaDurationMs)
	assert.Equal(t, []string{"gm", "base"}, item.Tags)

	select {
	case got := <-announced:
		assert.Equal(t, item.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("story was not announced")
	}
}

func TestPublish_Rejections(t *testing.T) {
	signedIn := domain.Identity{WalletAddress: "0xabc"}

	tests := []struct {
		name    string
		req     stories.PublishRequest
		wantErr error
	}{
		{
			name:    "anonymous",
			req:     stories.PublishRequest{Media: strings.NewReader("x"), Size: 1, ContentType: "image/png"},
			wantErr: stories.ErrNotSignedIn,
		},
		{
			name:    "pdf",
			req:     stories.PublishRequest{Author: signedIn, Media: strings.NewReader("x"), Size: 1, ContentType: "application/pdf"},
			wantErr: stories.ErrUnsupportedMedia,
		},
		{
			name:    "declared too large",
			req:     stories.PublishRequest{Author: signedIn, Media: strings.NewReader("x"), Size: 17, ContentType: "image/png"},
			wantErr: stories.ErrMediaTooLarge,
		},
		{
			name:    "streamed too large",
			req:     stories.PublishRequest{Author: signedIn, Media: bytes.NewReader(make([]byte, 17)), Size: -1, ContentType: "image/png"},
			wantErr: stories.ErrMediaTooLarge,
		},
		{
			name:    "empty",
			req:     stories.PublishRequest{Author: signedIn, Media: strings.NewReader(""), Size: -1, ContentType: "image/png"},
			wantErr: stories.ErrEmptyMedia,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Publish(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, apperrors.ErrBadRequest) || errors.Is(err, apperrors.ErrUnauthorized))
		})
	}
}

func TestPublish_Throttled(t *testing.T) {
	f := newFixture(t)
	f.limiter.EXPECT().Allow("0xabc").Return(false)

	_, err := f.svc.Publish(context.Background(), stories.PublishRequest{
		Author:      domain.Identity{WalletAddress: "0xabc"},
		Media:       strings.NewReader("img"),
		Size:        3,
		ContentType: "image/png",
	})
	assert.ErrorIs(t, err, stories.ErrPublishThrottled)
	assert.Equal(t, 429, apperrors.HTTPStatus(err))
}

func TestPublish_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.limiter.EXPECT().Allow("0xabc").Return(true)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), int64(3), "image/png").Return("", errors.New("503"))

	_, err := f.svc.Publish(context.Background(), stories.PublishRequest{
		Author:      domain.Identity{WalletAddress: "0xabc"},
		Media:       strings.NewReader("img"),
		Size:        3,
		ContentType: "image/png",
	})
	require.Error(t, err)
	assert.Equal(t, "upload_failed", apperrors.GetCode(err))
}

func TestListLive_DropsExpiredAndNormalizesSubject(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().ListBySubject(gomock.Any(), "0xabc").Return([]domain.StoryItem{
		storyAt("new", "0xabc", time.Hour),
		storyAt("edge", "0xabc", 24*time.Hour),
		storyAt("old", "0xabc", 24*time.Hour+time.Millisecond),
	}, nil)

	items, err := f.svc.ListLive(context.Background(), "  0xABC ")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "edge", items[1].ID)

	_, err = f.svc.ListLive(context.Background(), " ")
	assert.ErrorIs(t, err, stories.ErrMissingSubject)
}

func TestFeed_GroupsBySubjectNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().ListSince(gomock.Any(), now.Add(-24*time.Hour)).Return([]domain.StoryItem{
		storyAt("b1", "0xb", time.Minute),
		storyAt("a1", "0xa", 2*time.Minute),
		storyAt("b2", "0xb", 3*time.Minute),
	}, nil)

	groups, err := f.svc.Feed(context.Background(), domain.Identity{})
	require.NoError(t, err)

	want := []domain.StoryGroup{
		{SubjectKey: "0xb", Stories: []domain.StoryItem{storyAt("b1", "0xb", time.Minute), storyAt("b2", "0xb", 3*time.Minute)}},
		{SubjectKey: "0xa", Stories: []domain.StoryItem{storyAt("a1", "0xa", 2*time.Minute)}},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("feed mismatch (-want +got):\n%s", diff)
	}
}

func TestFeed_Empty(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().ListSince(gomock.Any(), gomock.Any()).Return([]domain.StoryItem{}, nil)

	groups, err := f.svc.Feed(context.Background(), domain.Identity{})
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestFeed_FollowedAccountsAndOwnStories(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().ListSince(gomock.Any(), gomock.Any()).Return([]domain.StoryItem{
		storyAt("c1", "0xc", time.Minute),
		storyAt("me1", "0xme", 2*time.Minute),
		storyAt("b1", "0xb", 3*time.Minute),
		storyAt("a1", "0xa", 4*time.Minute),
	}, nil)
	dwr := domain.Profile{FID: 3, Username: "dwr", WalletAddress: "0xa"}
	f.identity.EXPECT().Following(gomock.Any(), int64(42)).Return([]domain.Profile{
		dwr,
		{FID: 9, Username: "nowallet"},
	}, nil)

	groups, err := f.svc.Feed(context.Background(), domain.Identity{WalletAddress: "0xME", FID: 42})
	require.NoError(t, err)

	want := []domain.StoryGroup{
		{SubjectKey: "0xme", Stories: []domain.StoryItem{storyAt("me1", "0xme", 2*time.Minute)}},
		{SubjectKey: "0xa", Stories: []domain.StoryItem{storyAt("a1", "0xa", 4*time.Minute)}, Profile: &dwr},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("feed mismatch (-want +got):\n%s", diff)
	}
}

func TestFeed_UnfilteredWhenFollowingUnavailable(t *testing.T) {
	items := []domain.StoryItem{storyAt("a1", "0xa", time.Minute), storyAt("b1", "0xb", 2*time.Minute)}

	for name, lookupErr := range map[string]error{
		"not configured": identity.ErrNotConfigured,
		"neynar down":    errors.New("neynar returned 503"),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.stories.EXPECT().ListSince(gomock.Any(), gomock.Any()).Return(items, nil)
			f.identity.EXPECT().Following(gomock.Any(), int64(42)).Return(nil, lookupErr)

			groups, err := f.svc.Feed(context.Background(), domain.Identity{WalletAddress: "0xme", FID: 42})
			require.NoError(t, err)
			require.Len(t, groups, 2)
			assert.Nil(t, groups[0].Profile)
		})
	}
}

func TestFeed_FollowingNobodyShowsOnlyOwnStories(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().ListSince(gomock.Any(), gomock.Any()).Return([]domain.StoryItem{
		storyAt("a1", "0xa", time.Minute),
	}, nil)
	f.identity.EXPECT().Following(gomock.Any(), int64(42)).Return([]domain.Profile{}, nil)

	groups, err := f.svc.Feed(context.Background(), domain.Identity{WalletAddress: "0xme", FID: 42})
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	live := storyAt("s1", "0xa", time.Hour)
	expired := storyAt("s2", "0xa", 25*time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&live, nil)
	f.stories.EXPECT().GetByID(gomock.Any(), "s2").Return(&expired, nil)
	f.stories.EXPECT().GetByID(gomock.Any(), "s3").Return(nil, story.ErrNotFound)

	got, err := f.svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, live, got)

	_, err = f.svc.Get(context.Background(), "s2")
	assert.ErrorIs(t, err, stories.ErrStoryNotFound)

	_, err = f.svc.Get(context.Background(), "s3")
	assert.ErrorIs(t, err, stories.ErrStoryNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestUpdateDisplay_AuthorOnly(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	attrs := domain.DisplayAttrs{Text: "edited", Filter: "sepia"}
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil).Times(2)
	f.stories.EXPECT().UpdateDisplay(gomock.Any(), "s1", attrs).Return(nil)

	_, err := f.svc.UpdateDisplay(context.Background(), "s1", domain.Identity{WalletAddress: "0xb"}, attrs)
	assert.ErrorIs(t, err, stories.ErrNotAuthor)
	assert.Equal(t, 403, apperrors.HTTPStatus(err))

	got, err := f.svc.UpdateDisplay(context.Background(), "s1", domain.Identity{WalletAddress: "0xA"}, attrs)
	require.NoError(t, err)
	assert.Equal(t, attrs, got.DisplayAttrs)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", 30*time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil).Times(2)
	f.stories.EXPECT().Delete(gomock.Any(), "s1").Return(nil)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), "s1", domain.Identity{}), stories.ErrNotAuthor)
	assert.NoError(t, f.svc.Delete(context.Background(), "s1", domain.Identity{WalletAddress: "0xa"}))
}

func TestSearch_ClampsToLiveWindow(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().Search(gomock.Any(), domain.SearchQuery{
		Query:     "0xab",
		Tags:      []string{"gm"},
		DateRange: domain.DateRangeWeek,
		SortBy:    domain.SortSubject,
		Limit:     maxSearchLimit,
		Since:     now.Add(-24 * time.Hour),
	}).Return([]domain.StoryItem{storyAt("s1", "0xab", time.Hour)}, nil)

	items, err := f.svc.Search(context.Background(), domain.SearchQuery{
		Query:     " 0xab ",
		Tags:      []string{"#GM"},
		DateRange: domain.DateRangeWeek,
		SortBy:    domain.SortSubject,
		Limit:     500,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSearch_TodayAndDefaults(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().Search(gomock.Any(), domain.SearchQuery{
		Tags:      []string{},
		DateRange: domain.DateRangeToday,
		SortBy:    domain.SortNewest,
		Limit:     defaultSearchLimit,
		Since:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}).Return(nil, nil)

	_, err := f.svc.Search(context.Background(), domain.SearchQuery{DateRange: domain.DateRangeToday})
	require.NoError(t, err)

	_, err = f.svc.Search(context.Background(), domain.SearchQuery{SortBy: "random"})
	assert.ErrorIs(t, err, stories.ErrInvalidSearch)
	_, err = f.svc.Search(context.Background(), domain.SearchQuery{DateRange: "year"})
	assert.ErrorIs(t, err, stories.ErrInvalidSearch)
}

func TestRecordView(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil).Times(2)
	f.viewers.EXPECT().Record(gomock.Any(), domain.ViewerRecord{StoryID: "s1", ViewerKey: "42", ViewedAt: now}).Return(true, nil)
	f.viewers.EXPECT().Record(gomock.Any(), gomock.Any()).Return(false, nil)

	require.NoError(t, f.svc.RecordView(context.Background(), "s1", "42"))
	require.NoError(t, f.svc.RecordView(context.Background(), "s1", "42"))

	assert.ErrorIs(t, f.svc.RecordView(context.Background(), "s1", ""), stories.ErrMissingViewer)
}

func TestRecordView_StoryDeletedConcurrently(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil)
	f.viewers.EXPECT().Record(gomock.Any(), gomock.Any()).Return(false, viewer.ErrStoryNotFound)

	assert.ErrorIs(t, f.svc.RecordView(context.Background(), "s1", "0xb"), stories.ErrStoryNotFound)
}

func TestListViewers_EnrichesFarcasterViewers(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil)
	f.viewers.EXPECT().ListByStory(gomock.Any(), "s1").Return([]domain.ViewerRecord{
		{StoryID: "s1", ViewerKey: "42", ViewedAt: now},
		{StoryID: "s1", ViewerKey: "0xwallet", ViewedAt: now.Add(-time.Minute)},
		{StoryID: "s1", ViewerKey: "7", ViewedAt: now.Add(-2 * time.Minute)},
	}, nil)
	f.identity.EXPECT().LookupProfiles(gomock.Any(), []int64{42, 7}).Return(map[int64]domain.Profile{
		42: {FID: 42, Username: "alice"},
	}, nil)

	viewers, err := f.svc.ListViewers(context.Background(), "s1", domain.Identity{WalletAddress: "0xa"})
	require.NoError(t, err)
	require.Len(t, viewers, 3)
	require.NotNil(t, viewers[0].Profile)
	assert.Equal(t, "alice", viewers[0].Profile.Username)
	assert.Nil(t, viewers[1].Profile)
	assert.Nil(t, viewers[2].Profile)
}

func TestListViewers_IdentityFailureDegrades(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil)
	f.viewers.EXPECT().ListByStory(gomock.Any(), "s1").Return([]domain.ViewerRecord{{StoryID: "s1", ViewerKey: "42", ViewedAt: now}}, nil)
	f.identity.EXPECT().LookupProfiles(gomock.Any(), []int64{42}).Return(nil, errors.New("neynar down"))

	viewers, err := f.svc.ListViewers(context.Background(), "s1", domain.Identity{WalletAddress: "0xa"})
	require.NoError(t, err)
	require.Len(t, viewers, 1)
	assert.Equal(t, "42", viewers[0].ViewerKey)
	assert.Nil(t, viewers[0].Profile)
}

func TestListViewers_NotAuthor(t *testing.T) {
	f := newFixture(t)
	item := storyAt("s1", "0xa", time.Hour)
	f.stories.EXPECT().GetByID(gomock.Any(), "s1").Return(&item, nil)
	f.viewers.EXPECT().ListByStory(gomock.Any(), "s1").Return(nil, nil)

	_, err := f.svc.ListViewers(context.Background(), "s1", domain.Identity{WalletAddress: "0xb"})
	assert.ErrorIs(t, err, stories.ErrNotAuthor)

	_, err = f.svc.ListViewers(context.Background(), "s1", domain.Identity{})
	assert.ErrorIs(t, err, stories.ErrNotSignedIn)
}

func TestCountViews(t *testing.T) {
	f := newFixture(t)
	f.viewers.EXPECT().CountByStory(gomock.Any(), "s1").Return(int64(3), nil)

	n, err := f.svc.CountViews(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCleanup_DeletesPastRetention(t *testing.T) {
	f := newFixture(t)
	f.stories.EXPECT().DeleteOlderThan(gomock.Any(), now.Add(-48*time.Hour)).Return(int64(4), nil)

	n, err := f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestScheduleCleanup_RunsImmediately(t *testing.T) {
	f := newFixture(t)
	f.svc.Clock = clockwork.NewRealClock()
	ran := make(chan struct{}, 1)
	f.stories.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time) (int64, error) {
			select {
			case ran <- struct{}{}:
			default:
			}
			return 0, nil
		}).
		MinTimes(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.svc.ScheduleCleanup(ctx))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not run")
	}
}
