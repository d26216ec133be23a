package domain

import (
	"mime"
	"strings"
	"time"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaKindImage || k == MediaKindVideo
}

// MediaKindFromContentType accepts image/* and video/* only.
func MediaKindFromContentType(contentType string) (MediaKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return MediaKindImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return MediaKindVideo, true
	default:
		return "", false
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DisplayAttrs are rendering hints. Playback never interprets them.
type DisplayAttrs struct {
	Text          string   `json:"text,omitempty"`
	TextColor     string   `json:"text_color,omitempty"`
	FontSize      int      `json:"font_size,omitempty"`
	TextPosition  *Point   `json:"text_position,omitempty"`
	MediaPosition *Point   `json:"media_position,omitempty"`
	MediaScale    *float64 `json:"media_scale,omitempty"`
	Filter        string   `json:"filter,omitempty"`
}

type StoryItem struct {
	ID              string    `json:"id"`
	SubjectKey      string    `json:"wallet_address"`
	UserID          string    `json:"user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	MediaKind       MediaKind `json:"type"`
	MediaRef        string    `json:"url"`
	MediaDurationMs int64     `json:"media_duration_ms,omitempty"`
	DisplayAttrs
	Tags []string `json:"tags,omitempty"`
}

// MediaDuration is zero when the publisher did not report one.
func (s StoryItem) MediaDuration() time.Duration {
	return time.Duration(s.MediaDurationMs) * time.Millisecond
}

func (s StoryItem) IsAuthoredBy(subjectKey string) bool {
	return subjectKey != "" && s.SubjectKey == NormalizeSubjectKey(subjectKey)
}

type StoryGroup struct {
	SubjectKey string      `json:"wallet_address"`
	Stories    []StoryItem `json:"stories"`
	Profile    *Profile    `json:"profile,omitempty"`
}

// NormalizeSubjectKey lower-cases and trims a wallet address so that
// checksummed and plain spellings refer to the same subject.
func NormalizeSubjectKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
