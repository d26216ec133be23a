package playback

import (
	"time"

	"github.com/orgball2608/fary-stories/internal/preload"
	"github.com/orgball2608/fary-stories/pkg/config"
)

type State int

const (
	StateLoading State = iota
	StatePlaying
	StatePaused
	StateAdvancing
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateAdvancing:
		return "advancing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

type EndReason int

const (
	EndNone EndReason = iota
	EndCompleted
	EndClosed
	EndNoContent
	EndUnplayable
)

func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndClosed:
		return "closed"
	case EndNoContent:
		return "no_content"
	case EndUnplayable:
		return "unplayable"
	default:
		return "none"
	}
}

type EventKind int

const (
	EvReadiness EventKind = iota
	EvTick
	EvHoldStart
	EvHoldRelease
	EvMediaStarted
	EvMediaTimeUpdate
	EvMediaEnded
	EvMediaError
	EvNext
	EvPrevious
	EvClose
)

func (k EventKind) String() string {
	switch k {
	case EvReadiness:
		return "readiness"
	case EvTick:
		return "tick"
	case EvHoldStart:
		return "hold_start"
	case EvHoldRelease:
		return "hold_release"
	case EvMediaStarted:
		return "media_started"
	case EvMediaTimeUpdate:
		return "media_time_update"
	case EvMediaEnded:
		return "media_ended"
	case EvMediaError:
		return "media_error"
	case EvNext:
		return "next"
	case EvPrevious:
		return "previous"
	case EvClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is the only input of Transition. At must be set for navigation
// events; the navigation lock is evaluated against it.
type Event struct {
	Kind EventKind
	At   time.Time

	// EvReadiness
	Index     int
	Readiness preload.Readiness

	// EvTick: Timer identifies the ticker generation, Elapsed the time since
	// the previous tick of that generation.
	Timer   uint64
	Elapsed time.Duration

	// Media events carry the media epoch they were produced for.
	Epoch    uint64
	Position time.Duration
	Duration time.Duration
	Reason   string
}

type EffectKind int

const (
	EffRecordView EffectKind = iota
	EffStartTimer
	EffStopTimer
	EffPlayMedia
	EffPauseMedia
	EffReleaseMedia
	EffNavigateAway
)

func (k EffectKind) String() string {
	switch k {
	case EffRecordView:
		return "record_view"
	case EffStartTimer:
		return "start_timer"
	case EffStopTimer:
		return "stop_timer"
	case EffPlayMedia:
		return "play_media"
	case EffPauseMedia:
		return "pause_media"
	case EffReleaseMedia:
		return "release_media"
	case EffNavigateAway:
		return "navigate_away"
	default:
		return "unknown"
	}
}

// Effect is an instruction for the driver. Transition never performs I/O.
type Effect struct {
	Kind    EffectKind
	Index   int
	StoryID string
	Timer   uint64
	Epoch   uint64
	Delay   time.Duration
	Reason  EndReason
}

type Config struct {
	ImageDuration  time.Duration
	TickInterval   time.Duration
	EndGrace       time.Duration
	NavigationLock time.Duration
	// FallbackVideoDuration is used by clock driven transports when a story
	// carries no media duration.
	FallbackVideoDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		ImageDuration:         5000 * time.Millisecond,
		TickInterval:          30 * time.Millisecond,
		EndGrace:              500 * time.Millisecond,
		NavigationLock:        300 * time.Millisecond,
		FallbackVideoDuration: 15 * time.Second,
	}
}

func ConfigFrom(c *config.Config) Config {
	out := DefaultConfig()
	if c.Playback.ImageDuration > 0 {
		out.ImageDuration = c.Playback.ImageDuration
	}
	if c.Playback.TickInterval > 0 {
		out.TickInterval = c.Playback.TickInterval
	}
	if c.Playback.EndGrace >= 0 {
		out.EndGrace = c.Playback.EndGrace
	}
	if c.Playback.NavigationLock >= 0 {
		out.NavigationLock = c.Playback.NavigationLock
	}
	if c.Playback.FallbackVideoSeconds > 0 {
		out.FallbackVideoDuration = time.Duration(c.Playback.FallbackVideoSeconds * float64(time.Second))
	}
	return out
}
