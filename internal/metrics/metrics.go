package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaybackSessionsTotal counts finished playback sessions by end reason.
	PlaybackSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fary_playback_sessions_total",
		Help: "Finished playback sessions by end reason",
	}, []string{"reason"})

	// StoryViewsRecordedTotal counts view ledger writes by outcome.
	StoryViewsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fary_story_views_recorded_total",
		Help: "View ledger writes by outcome (recorded, duplicate, failed)",
	}, []string{"outcome"})

	PreloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fary_preload_total",
		Help: "Media preloads by media kind and outcome",
	}, []string{"kind", "outcome"})

	StoriesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fary_stories_published_total",
		Help: "Published stories by media kind",
	}, []string{"kind"})

	StoriesCleanupDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fary_stories_cleanup_deleted_total",
		Help: "Expired stories purged by the cleanup job",
	})
)

func ObservePlaybackSession(reason string) {
	PlaybackSessionsTotal.WithLabelValues(reason).Inc()
}

func ObserveViewRecorded(outcome string) {
	StoryViewsRecordedTotal.WithLabelValues(outcome).Inc()
}

func ObservePreload(kind, outcome string) {
	PreloadTotal.WithLabelValues(kind, outcome).Inc()
}

func ObservePublished(kind string) {
	StoriesPublishedTotal.WithLabelValues(kind).Inc()
}

func ObserveCleanup(deleted int64) {
	StoriesCleanupDeletedTotal.Add(float64(deleted))
}
