package story

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var createdAt = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

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

func storyRows(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows(columns)
}

func TestPgx_Create(t *testing.T) {
	repo, mock := newRepo(t)
	scale := 1.5
	story := domain.StoryItem{
		ID:         "s1",
		SubjectKey: "0xabc",
		CreatedAt:  createdAt,
		MediaKind:  domain.MediaKindImage,
		MediaRef:   "https://cdn/s1.png",
		DisplayAttrs: domain.DisplayAttrs{
			Text:       "gm",
			MediaScale: &scale,
		},
	}

	mock.ExpectExec(`INSERT INTO stories`).
		WithArgs("s1", "0xabc", "", createdAt, "image", "https://cdn/s1.png", int64(0), pgxmock.AnyArg(), []string{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), story))
}

func TestPgx_CreateDuplicate(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`INSERT INTO stories`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), domain.StoryItem{ID: "s1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestPgx_GetByID(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM stories WHERE id = \$1`).
		WithArgs("s1").
		WillReturnRows(storyRows(mock).AddRow(
			"s1", "0xabc", "u1", createdAt, "video", "https://cdn/s1.mp4", int64(8000),
			[]byte(`{"text":"hello","text_color":"#fff","text_position":{"x":0.5,"y":0.2}}`),
			[]string{"gm"},
		))

	story, err := repo.GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.MediaKindVideo, story.MediaKind)
	assert.Equal(t, 8*time.Second, story.MediaDuration())
	assert.Equal(t, "hello", story.Text)
	assert.Equal(t, &domain.Point{X: 0.5, Y: 0.2}, story.TextPosition)
	assert.Equal(t, []string{"gm"}, story.Tags)
}

func TestPgx_GetByIDNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`FROM stories WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(storyRows(mock))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPgx_ListBySubjectNewestFirst(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`FROM stories WHERE wallet_address = \$1 ORDER BY created_at DESC`).
		WithArgs("0xabc").
		WillReturnRows(storyRows(mock).
			AddRow("s2", "0xabc", "", createdAt, "image", "u2", int64(0), []byte(`{}`), []string{}).
			AddRow("s1", "0xabc", "", createdAt.Add(-time.Hour), "image", "u1", int64(0), []byte(`{}`), []string{}))

	stories, err := repo.ListBySubject(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "s2", stories[0].ID)
	assert.Equal(t, "s1", stories[1].ID)
}

func TestPgx_ListSinceEmpty(t *testing.T) {
	repo, mock := newRepo(t)
	since := createdAt.Add(-24 * time.Hour)

	mock.ExpectQuery(`FROM stories WHERE created_at >= \$1 ORDER BY created_at DESC`).
		WithArgs(since).
		WillReturnRows(storyRows(mock))

	stories, err := repo.ListSince(context.Background(), since)
	require.NoError(t, err)
	assert.NotNil(t, stories)
	assert.Empty(t, stories)
}

func TestPgx_SearchBuildsFilters(t *testing.T) {
	repo, mock := newRepo(t)
	since := createdAt.Add(-7 * 24 * time.Hour)

	mock.ExpectQuery(`WHERE wallet_address ILIKE \$1 AND tags && \$2 AND created_at >= \$3 ORDER BY wallet_address ASC, created_at DESC LIMIT 20`).
		WithArgs("%abc%", []string{"gm", "art"}, since).
		WillReturnRows(storyRows(mock).
			AddRow("s1", "0xabc", "", createdAt, "image", "u1", int64(0), []byte(nil), []string{"gm"}))

	stories, err := repo.Search(context.Background(), domain.SearchQuery{
		Query:  " abc ",
		Tags:   []string{"gm", "art"},
		SortBy: domain.SortSubject,
		Limit:  20,
		Since:  since,
	})
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, domain.DisplayAttrs{}, stories[0].DisplayAttrs)
}

func TestPgx_SearchEscapesWildcards(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`WHERE wallet_address ILIKE \$1 ORDER BY created_at DESC`).
		WithArgs(`%0x\_a\%b\\c%`).
		WillReturnRows(storyRows(mock))

	_, err := repo.Search(context.Background(), domain.SearchQuery{Query: `0x_a%b\c`})
	require.NoError(t, err)
}

func TestPgx_SearchWithoutFilters(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM stories ORDER BY created_at ASC$`).
		WithArgs().
		WillReturnRows(storyRows(mock))

	_, err := repo.Search(context.Background(), domain.SearchQuery{SortBy: domain.SortOldest})
	require.NoError(t, err)
}

func TestPgx_UpdateDisplay(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`UPDATE stories SET display = \$1 WHERE id = \$2`).
		WithArgs([]byte(`{"text":"new","filter":"sepia"}`), "s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE stories SET display = \$1 WHERE id = \$2`).
		WithArgs(pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateDisplay(context.Background(), "s1", domain.DisplayAttrs{Text: "new", Filter: "sepia"}))
	assert.ErrorIs(t, repo.UpdateDisplay(context.Background(), "missing", domain.DisplayAttrs{}), ErrNotFound)
}

func TestPgx_Delete(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(`DELETE FROM stories WHERE id = \$1`).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM stories WHERE id = \$1`).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "s1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "s1"), ErrNotFound)
}

func TestPgx_DeleteOlderThan(t *testing.T) {
	repo, mock := newRepo(t)
	cutoff := createdAt.Add(-48 * time.Hour)

	mock.ExpectExec(`DELETE FROM stories WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM stories WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnError(errors.New("connection reset"))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	_, err = repo.DeleteOlderThan(context.Background(), cutoff)
	assert.ErrorContains(t, err, "connection reset")
}
