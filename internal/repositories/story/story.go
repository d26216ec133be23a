package story

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
)

var (
	ErrNotFound      = errors.New("story not found")
	ErrAlreadyExists = errors.New("story already exists")
	ErrCannotCreate  = errors.New("error create story")
)

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

// Repository stores published stories. List methods return newest first.
type Repository interface {
	Create(ctx context.Context, story domain.StoryItem) error
	GetByID(ctx context.Context, id string) (*domain.StoryItem, error)
	ListBySubject(ctx context.Context, subjectKey string) ([]domain.StoryItem, error)
	ListSince(ctx context.Context, since time.Time) ([]domain.StoryItem, error)
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.StoryItem, error)
	UpdateDisplay(ctx context.Context, id string, attrs domain.DisplayAttrs) error
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
