// Package expiry decides which stories are still live.
package expiry

import (
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
)

const DefaultTTL = 24 * time.Hour

// IsExpired reports whether item is strictly older than ttl at now.
// An item exactly ttl old is still live.
func IsExpired(item domain.StoryItem, now time.Time, ttl time.Duration) bool {
	return now.Sub(item.CreatedAt) > ttl
}

// FilterLive keeps the live items in their original order.
func FilterLive(items []domain.StoryItem, now time.Time, ttl time.Duration) []domain.StoryItem {
	live, _ := Partition(items, now, ttl)
	return live
}

// Partition splits items into live and expired, preserving order in both.
func Partition(items []domain.StoryItem, now time.Time, ttl time.Duration) (live, expired []domain.StoryItem) {
	live = make([]domain.StoryItem, 0, len(items))
	for _, item := range items {
		if IsExpired(item, now, ttl) {
			expired = append(expired, item)
			continue
		}
		live = append(live, item)
	}
	return live, expired
}

// Cutoff is the oldest created_at that is still live at now.
func Cutoff(now time.Time, ttl time.Duration) time.Time {
	return now.Add(-ttl)
}
