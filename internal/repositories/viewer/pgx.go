package viewer

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/repositories"
	"github.com/orgball2608/fary-stories/pkg/logger"
)

const table = "story_viewers"

type Pgx struct {
	db     repositories.DB
	logger logger.Logger
}

func NewPgx(db repositories.DB, logger logger.Logger) *Pgx {
	return &Pgx{
		db:     db,
		logger: logger.WithComponent("ViewerRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Record(ctx context.Context, record domain.ViewerRecord) (bool, error) {
	query, args, err := repositories.SqBuilder.
		Insert(table).
		Columns("story_id", "viewer_key", "viewed_at").
		Values(record.StoryID, record.ViewerKey, record.ViewedAt).
		Suffix("ON CONFLICT (story_id, viewer_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, repositories.ErrBadQuery
	}

	result, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		if repositories.PgErrorCode(err) == repositories.CodeForeignKeyViolation {
			return false, ErrStoryNotFound
		}
		return false, fmt.Errorf("failed to record view of story %s: %w", record.StoryID, err)
	}

	inserted := result.RowsAffected() > 0
	if !inserted {
		p.logger.Debug("View already recorded", "story_id", record.StoryID, "viewer_key", record.ViewerKey)
	}
	return inserted, nil
}

func (p *Pgx) ListByStory(ctx context.Context, storyID string) ([]domain.ViewerRecord, error) {
	query, args, err := repositories.SqBuilder.
		Select("story_id", "viewer_key", "viewed_at").
		From(table).
		Where(sq.Eq{"story_id": storyID}).
		OrderBy("viewed_at DESC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewers of story %s: %w", storyID, err)
	}
	defer rows.Close()

	records := make([]domain.ViewerRecord, 0)
	for rows.Next() {
		var r domain.ViewerRecord
		if err := rows.Scan(&r.StoryID, &r.ViewerKey, &r.ViewedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Pgx) CountByStory(ctx context.Context, storyID string) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Select("COUNT(*)").
		From(table).
		Where(sq.Eq{"story_id": storyID}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	var count int64
	if err := p.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count viewers of story %s: %w", storyID, err)
	}
	return count, nil
}
