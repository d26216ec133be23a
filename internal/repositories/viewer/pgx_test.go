package viewer

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var viewedAt = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (*Pgx, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPgx(mock, logger.NewNop()), mock
}

func TestPgx_RecordIsIdempotent(t *testing.T) {
	repo, mock := newRepo(t)
	record := domain.ViewerRecord{StoryID: "s1", ViewerKey: "42", ViewedAt: viewedAt}

	mock.ExpectExec(`INSERT INTO story_viewers .+ ON CONFLICT \(story_id, viewer_key\) DO NOTHING`).
		WithArgs("s1", "42", viewedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO story_viewers .+ ON CONFLICT \(story_id, viewer_key\) DO NOTHING`).
		WithArgs("s1", "42", viewedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := repo.Record(context.Background(), record)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Record(context.Background(), record)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPgx_RecordUnknownStory(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`INSERT INTO story_viewers`).
		WithArgs("gone", "42", viewedAt).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := repo.Record(context.Background(), domain.ViewerRecord{StoryID: "gone", ViewerKey: "42", ViewedAt: viewedAt})
	assert.ErrorIs(t, err, ErrStoryNotFound)
}

func TestPgx_ListByStory(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT story_id, viewer_key, viewed_at FROM story_viewers WHERE story_id = \$1 ORDER BY viewed_at DESC`).
		WithArgs("s1").
		WillReturnRows(mock.NewRows([]string{"story_id", "viewer_key", "viewed_at"}).
			AddRow("s1", "42", viewedAt).
			AddRow("s1", "0xdef", viewedAt.Add(-time.Minute)))

	records, err := repo.ListByStory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ViewerRecord{
		{StoryID: "s1", ViewerKey: "42", ViewedAt: viewedAt},
		{StoryID: "s1", ViewerKey: "0xdef", ViewedAt: viewedAt.Add(-time.Minute)},
	}, records)
}

func TestPgx_CountByStory(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM story_viewers WHERE story_id = \$1`).
		WithArgs("s1").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := repo.CountByStory(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 7, count)
}
