package domain

import "time"

type DateRange string

const (
	DateRangeAll   DateRange = "all"
	DateRangeToday DateRange = "today"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
)

type SortBy string

const (
	SortNewest  SortBy = "newest"
	SortOldest  SortBy = "oldest"
	SortSubject SortBy = "subject"
)

type SearchQuery struct {
	Query     string
	Tags      []string
	DateRange DateRange
	SortBy    SortBy
	Limit     uint64
	// Since is filled by the service from DateRange and the expiry window.
	Since time.Time
}

// RangeStart returns the lower created_at bound for r, zero for "all".
func (r DateRange) RangeStart(now time.Time) time.Time {
	switch r {
	case DateRangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case DateRangeWeek:
		return now.AddDate(0, 0, -7)
	case DateRangeMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}
