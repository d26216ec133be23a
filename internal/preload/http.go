package preload

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
)

var (
	ErrUnsupportedKind = errors.New("unsupported media kind")
	ErrEmptyMedia      = errors.New("media is empty")
)

type HTTPFetcherOpts struct {
	Client             *http.Client
	Logger             logger.Logger
	Retry              retry.Config
	VideoPrefetchBytes int64
	MaxImageBytes      int64
}

// HTTPFetcher decodes images fully and buffers the head of videos.
type HTTPFetcher struct {
	client        *http.Client
	logger        logger.Logger
	retry         retry.Config
	videoPrefetch int64
	maxImageBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(opts HTTPFetcherOpts) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	prefetch := opts.VideoPrefetchBytes
	if prefetch <= 0 {
		prefetch = 1 << 20
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	maxImage := opts.MaxImageBytes
	if maxImage <= 0 {
		maxImage = 50 << 20
	}
	return &HTTPFetcher{
		client:        client,
		logger:        log,
		retry:         opts.Retry,
		videoPrefetch: prefetch,
		maxImageBytes: maxImage,
	}
}

func (f *HTTPFetcher) Warm(ctx context.Context, item domain.StoryItem) error {
	switch item.MediaKind {
	case domain.MediaKindImage:
		return retry.Do(ctx, f.logger, "preload image", func() error {
			return f.fetch(ctx, item.MediaRef, "", f.decodeImage)
		}, f.retry)
	case domain.MediaKindVideo:
		rangeHeader := fmt.Sprintf("bytes=0-%d", f.videoPrefetch-1)
		return retry.Do(ctx, f.logger, "preload video", func() error {
			return f.fetch(ctx, item.MediaRef, rangeHeader, f.bufferVideo)
		}, f.retry)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, item.MediaKind)
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, url, rangeHeader string, consume func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("media server returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("media server returned %d", resp.StatusCode))
	}

	if err := consume(resp.Body); err != nil {
		return retry.Permanent(err)
	}
	return nil
}

func (f *HTTPFetcher) decodeImage(body io.Reader) error {
	if _, _, err := image.Decode(io.LimitReader(body, f.maxImageBytes)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}

// bufferVideo succeeds once the prefetch window is read or the whole
// (shorter) file has arrived.
func (f *HTTPFetcher) bufferVideo(body io.Reader) error {
	n, err := io.CopyN(io.Discard, body, f.videoPrefetch)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("buffer video: %w", err)
	}
	if n == 0 {
		return ErrEmptyMedia
	}
	return nil
}
