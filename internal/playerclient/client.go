// Package playerclient talks to the stories API on behalf of a player.
package playerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/playback"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
)

var ErrNotFound = errors.New("story not found")

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	retry   retry.Config
	logger  logger.Logger
}

var _ playback.ViewRecorder = (*Client)(nil)

// New builds a client for the API at baseURL. token may be empty for
// anonymous playback.
func New(baseURL, token string, log logger.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		retry:   retry.DefaultConfig(),
		logger:  log.WithComponent("PlayerClient"),
	}
}

// ListLive fetches the subject's live stories, newest first.
func (c *Client) ListLive(ctx context.Context, subjectKey string) ([]domain.StoryItem, error) {
	endpoint := c.baseURL + "/api/stories/user/" + url.PathEscape(domain.NormalizeSubjectKey(subjectKey))

	var items []domain.StoryItem
	err := c.do(ctx, "list live stories", http.MethodGet, endpoint, nil, &items)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RecordView reports a completed view. A signed-in client is recorded under
// its own viewer key whatever viewerKey says.
func (c *Client) RecordView(ctx context.Context, storyID, viewerKey string) error {
	endpoint := c.baseURL + "/api/stories/" + url.PathEscape(storyID) + "/views"

	body, err := json.Marshal(map[string]string{"viewer_key": viewerKey})
	if err != nil {
		return err
	}
	return c.do(ctx, "record view", http.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, out any) error {
	return retry.Do(ctx, c.logger, op, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%s: server returned %d", op, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return retry.Permanent(ErrNotFound)
		case resp.StatusCode >= 300:
			return retry.Permanent(fmt.Errorf("%s: server returned %d: %s", op, resp.StatusCode, errorMessage(resp.Body)))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("%s: failed to decode response: %w", op, err))
		}
		return nil
	}, c.retry)
}

func errorMessage(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.Error == "" {
		return "unknown error"
	}
	return body.Error
}
