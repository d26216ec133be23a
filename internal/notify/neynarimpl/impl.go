package neynarimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/notify"
	"github.com/orgball2608/fary-stories/pkg/formatter"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
)

type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	publicURL string
	retry     retry.Config
	logger    logger.Logger
}

var _ notify.Notifier = (*Client)(nil)

func New(baseURL, apiKey, publicURL string, log logger.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		publicURL: strings.TrimRight(publicURL, "/"),
		retry:     retry.DefaultConfig(),
		logger:    log.WithComponent("NeynarNotifier"),
	}
}

type notification struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	TargetURL string `json:"target_url"`
}

type notificationRequest struct {
	// Empty means every user who enabled notifications for the frame.
	TargetFIDs   []int64      `json:"target_fids"`
	Notification notification `json:"notification"`
}

func (c *Client) StoryPublished(ctx context.Context, story domain.StoryItem) error {
	payload, err := json.Marshal(notificationRequest{
		TargetFIDs: []int64{},
		Notification: notification{
			Title:     "New story",
			Body:      formatter.ShortAddress(story.SubjectKey) + " posted a new " + string(story.MediaKind) + " story",
			TargetURL: notify.StoryURL(c.publicURL, story),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	return retry.Do(ctx, c.logger, "neynar frame notification", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/farcaster/frame/notifications", bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("neynar returned %d", resp.StatusCode)
		case resp.StatusCode >= 300:
			return retry.Permanent(fmt.Errorf("neynar returned %d", resp.StatusCode))
		}

		c.logger.Info("Story notification sent", "story_id", story.ID)
		return nil
	}, c.retry)
}
