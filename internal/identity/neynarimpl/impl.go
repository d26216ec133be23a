package neynarimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/orgball2608/fary-stories/internal/cache"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/identity"
	"github.com/orgball2608/fary-stories/pkg/config"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
	"go.uber.org/fx"
)

const (
	// Neynar accepts at most this many fids per bulk request.
	maxBulkFIDs = 100
	// Following is read as a single page, newest follows first.
	followingLimit = 100
)

type Opts struct {
	fx.In
	Config *config.Config
	Logger logger.Logger
	Cache  cache.Cache
}

type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	cache      cache.Cache
	profileTTL time.Duration
	retry      retry.Config
	logger     logger.Logger
}

var _ identity.Client = (*Client)(nil)

func New(opts Opts) *Client {
	return &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(opts.Config.Neynar.BaseURL, "/"),
		apiKey:     opts.Config.Neynar.APIKey,
		cache:      opts.Cache,
		profileTTL: opts.Config.Redis.ProfileTTL,
		retry:      retry.DefaultConfig(),
		logger:     opts.Logger.WithComponent("NeynarIdentity"),
	}
}

type user struct {
	FID               int64  `json:"fid"`
	Username          string `json:"username"`
	DisplayName       string `json:"display_name"`
	PfpURL            string `json:"pfp_url"`
	VerifiedAddresses struct {
		Primary struct {
			EthAddress string `json:"eth_address"`
		} `json:"primary"`
	} `json:"verified_addresses"`
}

func (u user) profile() domain.Profile {
	return domain.Profile{
		FID:           u.FID,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		PfpURL:        u.PfpURL,
		WalletAddress: domain.NormalizeSubjectKey(u.VerifiedAddresses.Primary.EthAddress),
	}
}

type bulkResponse struct {
	Users []user `json:"users"`
}

type followingResponse struct {
	Users []struct {
		User user `json:"user"`
	} `json:"users"`
}

func profileKey(fid int64) string {
	return "profile:" + strconv.FormatInt(fid, 10)
}

func followingKey(fid int64) string {
	return "following:" + strconv.FormatInt(fid, 10)
}

func (c *Client) LookupProfiles(ctx context.Context, fids []int64) (map[int64]domain.Profile, error) {
	profiles := make(map[int64]domain.Profile, len(fids))

	var missing []int64
	seen := make(map[int64]struct{}, len(fids))
	for _, fid := range fids {
		if _, dup := seen[fid]; dup || fid <= 0 {
			continue
		}
		seen[fid] = struct{}{}

		var p domain.Profile
		if cache.GetJSON(ctx, c.cache, profileKey(fid), &p) {
			profiles[fid] = p
			continue
		}
		missing = append(missing, fid)
	}

	if len(missing) > 0 && c.apiKey == "" {
		c.logger.Debug("Neynar API key not configured, skipping profile lookup", "fids", len(missing))
		return profiles, nil
	}

	for start := 0; start < len(missing); start += maxBulkFIDs {
		end := min(start+maxBulkFIDs, len(missing))
		fetched, err := c.fetchBulk(ctx, missing[start:end])
		if err != nil {
			return profiles, err
		}
		for _, p := range fetched {
			profiles[p.FID] = p
			cache.SetJSON(ctx, c.cache, profileKey(p.FID), p, c.profileTTL)
		}
	}

	return profiles, nil
}

func (c *Client) Following(ctx context.Context, fid int64) ([]domain.Profile, error) {
	var following []domain.Profile
	if cache.GetJSON(ctx, c.cache, followingKey(fid), &following) {
		return following, nil
	}
	if c.apiKey == "" {
		return nil, identity.ErrNotConfigured
	}

	q := url.Values{}
	q.Set("fid", strconv.FormatInt(fid, 10))
	q.Set("limit", strconv.Itoa(followingLimit))

	body, err := getJSON[followingResponse](ctx, c, "neynar following lookup", "/v2/farcaster/following?"+q.Encode())
	if err != nil {
		return nil, err
	}

	following = make([]domain.Profile, 0, len(body.Users))
	for _, u := range body.Users {
		p := u.User.profile()
		following = append(following, p)
		cache.SetJSON(ctx, c.cache, profileKey(p.FID), p, c.profileTTL)
	}
	cache.SetJSON(ctx, c.cache, followingKey(fid), following, c.profileTTL)

	return following, nil
}

func (c *Client) fetchBulk(ctx context.Context, fids []int64) ([]domain.Profile, error) {
	ids := make([]string, len(fids))
	for i, fid := range fids {
		ids[i] = strconv.FormatInt(fid, 10)
	}

	body, err := getJSON[bulkResponse](ctx, c, "neynar bulk user lookup", "/v2/farcaster/user/bulk?fids="+url.QueryEscape(strings.Join(ids, ",")))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Profile, 0, len(body.Users))
	for _, u := range body.Users {
		out = append(out, u.profile())
	}
	return out, nil
}

// getJSON retries rate limits and server errors; other failures are final.
func getJSON[T any](ctx context.Context, c *Client, op, path string) (T, error) {
	endpoint := c.baseURL + path

	return retry.DoValue(ctx, c.logger, op, func() (T, error) {
		var body T
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return body, retry.Permanent(err)
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("x-neynar-experimental", "false")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return body, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return body, fmt.Errorf("neynar returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return body, retry.Permanent(fmt.Errorf("neynar returned %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return body, retry.Permanent(fmt.Errorf("failed to decode neynar response: %w", err))
		}
		return body, nil
	}, c.retry)
}
