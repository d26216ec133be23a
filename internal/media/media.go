package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/google/uuid"
)

var ErrUploadFailed = errors.New("media upload failed")

//go:generate go run go.uber.org/mock/mockgen -source=media.go -destination=mocks/mock.go

// Store uploads story media and returns the URL viewers fetch it from.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// StorageKey builds a unique object key grouped by subject and day.
func StorageKey(subjectKey, contentType string, now time.Time) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("stories/%s/%d/%02d/%02d/%s%s", subjectKey, now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}
