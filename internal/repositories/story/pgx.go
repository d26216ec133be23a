package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/repositories"
	"github.com/orgball2608/fary-stories/pkg/logger"
)

const table = "stories"

var columns = []string{
	"id",
	"wallet_address",
	"user_id",
	"created_at",
	"media_type",
	"media_url",
	"media_duration_ms",
	"display",
	"tags",
}

type Pgx struct {
	db     repositories.DB
	logger logger.Logger
}

func NewPgx(db repositories.DB, logger logger.Logger) *Pgx {
	return &Pgx{
		db:     db,
		logger: logger.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func (p *Pgx) Create(ctx context.Context, story domain.StoryItem) error {
	display, err := json.Marshal(story.DisplayAttrs)
	if err != nil {
		return fmt.Errorf("failed to encode display attributes: %w", err)
	}
	tags := story.Tags
	if tags == nil {
		tags = []string{}
	}

	query, args, err := repositories.SqBuilder.
		Insert(table).
		Columns(columns...).
		Values(
			story.ID,
			story.SubjectKey,
			story.UserID,
			story.CreatedAt,
			string(story.MediaKind),
			story.MediaRef,
			story.MediaDurationMs,
			display,
			tags,
		).ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	if _, err = p.db.Exec(ctx, query, args...); err != nil {
		if repositories.PgErrorCode(err) == repositories.CodeUniqueViolation {
			return ErrAlreadyExists
		}
		return errors.Join(err, ErrCannotCreate)
	}
	return nil
}

func (p *Pgx) GetByID(ctx context.Context, id string) (*domain.StoryItem, error) {
	query, args, err := repositories.SqBuilder.
		Select(columns...).
		From(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	story, err := scanStory(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return &story, nil
}

func (p *Pgx) ListBySubject(ctx context.Context, subjectKey string) ([]domain.StoryItem, error) {
	return p.list(ctx, repositories.SqBuilder.
		Select(columns...).
		From(table).
		Where(sq.Eq{"wallet_address": subjectKey}).
		OrderBy("created_at DESC"))
}

func (p *Pgx) ListSince(ctx context.Context, since time.Time) ([]domain.StoryItem, error) {
	return p.list(ctx, repositories.SqBuilder.
		Select(columns...).
		From(table).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC"))
}

// likeEscaper makes the search text match literally under the default
// LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (p *Pgx) Search(ctx context.Context, q domain.SearchQuery) ([]domain.StoryItem, error) {
	builder := repositories.SqBuilder.
		Select(columns...).
		From(table)

	if text := strings.TrimSpace(q.Query); text != "" {
		builder = builder.Where(sq.ILike{"wallet_address": "%" + likeEscaper.Replace(text) + "%"})
	}
	if len(q.Tags) > 0 {
		builder = builder.Where(sq.Expr("tags && ?", q.Tags))
	}
	if !q.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": q.Since})
	}

	switch q.SortBy {
	case domain.SortOldest:
		builder = builder.OrderBy("created_at ASC")
	case domain.SortSubject:
		builder = builder.OrderBy("wallet_address ASC", "created_at DESC")
	default:
		builder = builder.OrderBy("created_at DESC")
	}
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}

	return p.list(ctx, builder)
}

func (p *Pgx) UpdateDisplay(ctx context.Context, id string, attrs domain.DisplayAttrs) error {
	display, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode display attributes: %w", err)
	}

	query, args, err := repositories.SqBuilder.
		Update(table).
		Set("display", display).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update story %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Pgx) Delete(ctx context.Context, id string) error {
	query, args, err := repositories.SqBuilder.
		Delete(table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	result, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOlderThan removes stories created before cutoff. Viewer rows go
// with them through the foreign key.
func (p *Pgx) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := repositories.SqBuilder.
		Delete(table).
		Where(sq.Lt{"created_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		p.logger.Info("Deleted expired stories", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (p *Pgx) list(ctx context.Context, builder sq.SelectBuilder) ([]domain.StoryItem, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := make([]domain.StoryItem, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stories, nil
}

func scanStory(row pgx.Row) (domain.StoryItem, error) {
	var (
		story     domain.StoryItem
		mediaType string
		display   []byte
	)
	err := row.Scan(
		&story.ID,
		&story.SubjectKey,
		&story.UserID,
		&story.CreatedAt,
		&mediaType,
		&story.MediaRef,
		&story.MediaDurationMs,
		&display,
		&story.Tags,
	)
	if err != nil {
		return domain.StoryItem{}, err
	}

	story.MediaKind = domain.MediaKind(mediaType)
	if len(display) > 0 {
		if err := json.Unmarshal(display, &story.DisplayAttrs); err != nil {
			return domain.StoryItem{}, fmt.Errorf("failed to decode display attributes of story %s: %w", story.ID, err)
		}
	}
	return story, nil
}
