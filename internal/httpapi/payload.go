package httpapi

import (
	"github.com/orgball2608/fary-stories/internal/domain"
)

// displayPayload accepts display keys in both snake_case and camelCase;
// the web editor sends camelCase while stored rows use snake_case.
type displayPayload struct {
	Text string `json:"text"`

	TextColor      string `json:"text_color"`
	TextColorCamel string `json:"textColor"`

	FontSize      int `json:"font_size"`
	FontSizeCamel int `json:"fontSize"`

	TextPosition      *domain.Point `json:"text_position"`
	TextPositionCamel *domain.Point `json:"textPosition"`

	MediaPosition      *domain.Point `json:"media_position"`
	MediaPositionCamel *domain.Point `json:"mediaPosition"`

	MediaScale      *float64 `json:"media_scale"`
	MediaScaleCamel *float64 `json:"mediaScale"`

	Filter string `json:"filter"`
}

func (p displayPayload) attrs() domain.DisplayAttrs {
	return domain.DisplayAttrs{
		Text:          p.Text,
		TextColor:     firstNonZero(p.TextColor, p.TextColorCamel),
		FontSize:      firstNonZero(p.FontSize, p.FontSizeCamel),
		TextPosition:  firstNonNil(p.TextPosition, p.TextPositionCamel),
		MediaPosition: firstNonNil(p.MediaPosition, p.MediaPositionCamel),
		MediaScale:    firstNonNil(p.MediaScale, p.MediaScaleCamel),
		Filter:        p.Filter,
	}
}

type publishMetadata struct {
	displayPayload

	Tags []string `json:"tags"`

	MediaDurationMs      int64 `json:"media_duration_ms"`
	MediaDurationMsCamel int64 `json:"mediaDurationMs"`
}

func (m publishMetadata) durationMs() int64 {
	return firstNonZero(m.MediaDurationMs, m.MediaDurationMsCamel)
}

type searchFilters struct {
	DateRange domain.DateRange `json:"dateRange"`
	SortBy    domain.SortBy    `json:"sortBy"`
	Tags      []string         `json:"tags"`
}

type searchRequest struct {
	Query   string         `json:"query"`
	Filters *searchFilters `json:"filters"`
	Limit   uint64         `json:"limit"`
}

func (r searchRequest) toQuery() domain.SearchQuery {
	q := domain.SearchQuery{Query: r.Query, Limit: r.Limit}
	if r.Filters != nil {
		q.DateRange = r.Filters.DateRange
		q.SortBy = r.Filters.SortBy
		q.Tags = r.Filters.Tags
	}
	return q
}

type signInRequest struct {
	WalletAddress      string `json:"wallet_address"`
	WalletAddressCamel string `json:"walletAddress"`
	FID                int64  `json:"fid"`
}

type recordViewRequest struct {
	ViewerKey string `json:"viewer_key"`
	FID       int64  `json:"fid"`
}

type storyResponse struct {
	domain.StoryItem
	Viewers   []domain.Viewer `json:"viewers,omitempty"`
	ViewCount *int64          `json:"view_count,omitempty"`
}

func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func firstNonNil[T any](vals ...*T) *T {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
