package notify

import (
	"context"
	"errors"

	"github.com/orgball2608/fary-stories/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=notify.go -destination=mocks/mock.go

// Notifier announces newly published stories.
type Notifier interface {
	StoryPublished(ctx context.Context, story domain.StoryItem) error
}

// Multi fans out to every sink and joins their errors.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) StoryPublished(ctx context.Context, story domain.StoryItem) error {
	var errs []error
	for _, n := range m {
		if err := n.StoryPublished(ctx, story); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoryURL is the link a notification opens.
func StoryURL(publicURL string, story domain.StoryItem) string {
	return publicURL + "/user/" + story.SubjectKey
}
