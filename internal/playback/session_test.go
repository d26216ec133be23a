package playback_test

import (
	"testing"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/expiry"
	"github.com/orgball2608/fary-stories/internal/playback"
	"github.com/orgball2608/fary-stories/internal/preload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func img(id string) domain.StoryItem {
	return domain.StoryItem{ID: id, MediaKind: domain.MediaKindImage, CreatedAt: t0.Add(-time.Hour)}
}

func vid(id string, d time.Duration) domain.StoryItem {
	return domain.StoryItem{ID: id, MediaKind: domain.MediaKindVideo, CreatedAt: t0.Add(-time.Hour), MediaDurationMs: d.Milliseconds()}
}

// machine feeds events into Transition and keeps every emitted effect.
type machine struct {
	t       *testing.T
	cfg     playback.Config
	s       playback.Session
	now     time.Time
	effects []playback.Effect
}

func newMachine(t *testing.T, items ...domain.StoryItem) *machine {
	t.Helper()
	cfg := playback.DefaultConfig()
	s, effects := playback.NewSession(items, "42", cfg)
	return &machine{t: t, cfg: cfg, s: s, now: t0, effects: effects}
}

func (m *machine) do(ev playback.Event) []playback.Effect {
	if ev.At.IsZero() {
		ev.At = m.now
	}
	next, effects := playback.Transition(m.s, ev, m.cfg)
	m.s = next
	m.effects = append(m.effects, effects...)
	return effects
}

func (m *machine) advanceClock(d time.Duration) { m.now = m.now.Add(d) }

func (m *machine) ready(indexes ...int) {
	for _, i := range indexes {
		m.do(playback.Event{Kind: playback.EvReadiness, Index: i, Readiness: preload.Ready()})
	}
}

func (m *machine) fail(i int) {
	m.do(playback.Event{Kind: playback.EvReadiness, Index: i, Readiness: preload.Failed("404")})
}

func (m *machine) tick(d time.Duration) []playback.Effect {
	m.advanceClock(d)
	return m.do(playback.Event{Kind: playback.EvTick, Timer: m.s.Timer(), Elapsed: d})
}

func (m *machine) count(kind playback.EffectKind) int {
	n := 0
	for _, e := range m.effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (m *machine) recordedViews() map[string]int {
	out := make(map[string]int)
	for _, e := range m.effects {
		if e.Kind == playback.EffRecordView {
			out[e.StoryID]++
		}
	}
	return out
}

func kinds(effects []playback.Effect) []playback.EffectKind {
	out := make([]playback.EffectKind, 0, len(effects))
	for _, e := range effects {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewSession_EmptyEndsWithoutPlaying(t *testing.T) {
	m := newMachine(t)

	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndNoContent, m.s.EndReason)
	assert.Equal(t, []playback.EffectKind{playback.EffNavigateAway}, kinds(m.effects))
	assert.Zero(t, m.effects[0].Delay, "no content leaves immediately")
	assert.Equal(t, 0, m.s.Index)

	m.do(playback.Event{Kind: playback.EvNext})
	m.ready(0)
	assert.Zero(t, m.count(playback.EffStartTimer)+m.count(playback.EffPlayMedia))
}

func TestSession_SkippingWhileLoadingCompletes(t *testing.T) {
	m := newMachine(t, img("a"))

	m.do(playback.Event{Kind: playback.EvNext})

	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndCompleted, m.s.EndReason)
	assert.Empty(t, m.recordedViews())
	require.Equal(t, 1, m.count(playback.EffNavigateAway))
	assert.Equal(t, m.cfg.EndGrace, m.effects[len(m.effects)-1].Delay)
}

func TestSession_LoadingUntilFirstItemReady(t *testing.T) {
	m := newMachine(t, img("a"), img("b"))
	assert.Equal(t, playback.StateLoading, m.s.State)

	m.ready(1)
	assert.Equal(t, playback.StateLoading, m.s.State, "readiness of a later item must not start playback")

	m.ready(0)
	assert.Equal(t, playback.StatePlaying, m.s.State)
	assert.Equal(t, 0, m.s.Index)
	assert.Equal(t, []playback.EffectKind{playback.EffRecordView, playback.EffStartTimer}, kinds(m.effects))
}

func TestSession_ThreeImagesEndExactlyOnce(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"))
	m.ready(0, 1, 2)

	for i := 0; i < 3; i++ {
		require.Equal(t, i, m.s.Index)
		require.Equal(t, playback.StatePlaying, m.s.State)
		for step := 0; step < 166; step++ {
			m.tick(30 * time.Millisecond)
		}
		m.tick(30 * time.Millisecond)
	}

	require.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndCompleted, m.s.EndReason)
	assert.Equal(t, 2, m.s.Index)
	assert.Equal(t, 1, m.count(playback.EffNavigateAway))

	// Late completions and gestures are no-ops.
	assert.Empty(t, m.do(playback.Event{Kind: playback.EvTick, Timer: m.s.Timer(), Elapsed: time.Second}))
	assert.Empty(t, m.do(playback.Event{Kind: playback.EvNext, At: m.now.Add(time.Hour)}))
	assert.Empty(t, m.do(playback.Event{Kind: playback.EvClose}))
	assert.Equal(t, 1, m.count(playback.EffNavigateAway))

	for _, e := range m.effects {
		if e.Kind == playback.EffNavigateAway {
			assert.Equal(t, 500*time.Millisecond, e.Delay)
		}
	}
	assert.Equal(t, []float64{1, 1, 1}, m.s.Bars())
}

func TestSession_ImagePauseResumeKeepsProgress(t *testing.T) {
	m := newMachine(t, img("a"), img("b"))
	m.ready(0, 1)

	m.tick(2 * time.Second)
	require.InDelta(t, 0.4, m.s.Progress, 1e-9)
	oldTimer := m.s.Timer()

	effects := m.do(playback.Event{Kind: playback.EvHoldStart})
	assert.Equal(t, []playback.EffectKind{playback.EffStopTimer}, kinds(effects))
	assert.True(t, m.s.IsPaused())

	// A tick that was already in flight must not move a paused session.
	m.do(playback.Event{Kind: playback.EvTick, Timer: oldTimer, Elapsed: 3 * time.Second})
	assert.InDelta(t, 0.4, m.s.Progress, 1e-9)

	effects = m.do(playback.Event{Kind: playback.EvHoldRelease})
	require.Equal(t, []playback.EffectKind{playback.EffStartTimer}, kinds(effects))
	assert.NotEqual(t, oldTimer, effects[0].Timer)
	assert.Equal(t, playback.StatePlaying, m.s.State)
	assert.InDelta(t, 0.4, m.s.Progress, 1e-9)

	// Ticks from the stopped timer stay ignored after resume.
	m.do(playback.Event{Kind: playback.EvTick, Timer: oldTimer, Elapsed: 3 * time.Second})
	assert.InDelta(t, 0.4, m.s.Progress, 1e-9)

	m.tick(time.Second)
	assert.InDelta(t, 0.6, m.s.Progress, 1e-9)
	assert.Equal(t, 0, m.s.Index)
}

func TestSession_VideoPauseResumeKeepsProgress(t *testing.T) {
	m := newMachine(t, vid("v", 10*time.Second))
	m.ready(0)
	epoch := m.s.Epoch()

	m.do(playback.Event{Kind: playback.EvMediaTimeUpdate, Epoch: epoch, Position: 4 * time.Second, Duration: 10 * time.Second})
	require.InDelta(t, 0.4, m.s.Progress, 1e-9)

	effects := m.do(playback.Event{Kind: playback.EvHoldStart})
	assert.Equal(t, []playback.Effect{{Kind: playback.EffPauseMedia, Index: 0, Epoch: epoch}}, effects)

	m.do(playback.Event{Kind: playback.EvMediaTimeUpdate, Epoch: epoch, Position: 6 * time.Second, Duration: 10 * time.Second})
	assert.InDelta(t, 0.4, m.s.Progress, 1e-9)

	effects = m.do(playback.Event{Kind: playback.EvHoldRelease})
	require.Len(t, effects, 1)
	assert.Equal(t, playback.EffPlayMedia, effects[0].Kind)
	assert.Equal(t, epoch, effects[0].Epoch)
	assert.InDelta(t, 0.4, m.s.Progress, 1e-9)
	assert.Equal(t, 1, m.count(playback.EffRecordView))
}

func TestSession_HoldIgnoredWhileLoading(t *testing.T) {
	m := newMachine(t, img("a"))
	assert.Empty(t, m.do(playback.Event{Kind: playback.EvHoldStart}))
	assert.Empty(t, m.do(playback.Event{Kind: playback.EvHoldRelease}))
	assert.Equal(t, playback.StateLoading, m.s.State)
}

func TestSession_NavigationLockSuppressesSecondAdvance(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"), img("d"))
	m.ready(0, 1, 2, 3)

	m.do(playback.Event{Kind: playback.EvNext})
	m.advanceClock(100 * time.Millisecond)
	m.do(playback.Event{Kind: playback.EvNext})
	assert.Equal(t, 1, m.s.Index)
	assert.True(t, m.s.Locked(m.now))

	m.advanceClock(250 * time.Millisecond)
	assert.False(t, m.s.Locked(m.now))
	m.do(playback.Event{Kind: playback.EvNext})
	assert.Equal(t, 2, m.s.Index)
}

func TestSession_CompletionThenNextInsideWindowAdvancesOnce(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"))
	m.ready(0, 1, 2)

	m.tick(5 * time.Second)
	require.Equal(t, 1, m.s.Index)

	m.advanceClock(50 * time.Millisecond)
	m.do(playback.Event{Kind: playback.EvNext})
	assert.Equal(t, 1, m.s.Index)
	assert.Equal(t, playback.StatePlaying, m.s.State)
}

func TestSession_StaleCompletionsAreDiscarded(t *testing.T) {
	m := newMachine(t, vid("v1", 10*time.Second), vid("v2", 10*time.Second), img("c"))
	m.ready(0, 1, 2)
	first := m.s.Epoch()

	m.do(playback.Event{Kind: playback.EvMediaEnded, Epoch: first})
	require.Equal(t, 1, m.s.Index)

	m.advanceClock(time.Second)
	m.do(playback.Event{Kind: playback.EvMediaEnded, Epoch: first})
	m.do(playback.Event{Kind: playback.EvMediaError, Epoch: first, Reason: "late"})
	m.do(playback.Event{Kind: playback.EvMediaTimeUpdate, Epoch: first, Position: 9 * time.Second, Duration: 10 * time.Second})
	assert.Equal(t, 1, m.s.Index)
	assert.Zero(t, m.s.Progress)
}

func TestSession_RecordViewOncePerStoryPerSession(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"))
	m.ready(0, 1, 2)

	m.do(playback.Event{Kind: playback.EvNext})
	require.Equal(t, 1, m.s.Index)

	m.do(playback.Event{Kind: playback.EvPrevious})
	require.Equal(t, 0, m.s.Index)
	assert.Zero(t, m.s.Progress)

	m.advanceClock(time.Second)
	m.do(playback.Event{Kind: playback.EvNext})
	require.Equal(t, 1, m.s.Index)

	assert.Equal(t, map[string]int{"a": 1, "b": 1}, m.recordedViews())
	assert.True(t, m.s.Viewed(0))
	assert.False(t, m.s.Viewed(2))
}

func TestSession_PreviousRules(t *testing.T) {
	m := newMachine(t, img("a"), img("b"))
	m.ready(0, 1)

	assert.Empty(t, m.do(playback.Event{Kind: playback.EvPrevious}), "previous on the first story is a no-op")

	m.do(playback.Event{Kind: playback.EvNext})
	m.tick(time.Second)
	// Previous is not subject to the navigation lock.
	m.do(playback.Event{Kind: playback.EvPrevious, At: m.now.Add(10 * time.Millisecond)})
	assert.Equal(t, 0, m.s.Index)
	assert.Equal(t, playback.StatePlaying, m.s.State)
}

func TestSession_ExpiredStoryExample(t *testing.T) {
	a := domain.StoryItem{ID: "A", MediaKind: domain.MediaKindImage, CreatedAt: t0.Add(-2 * time.Hour)}
	b := domain.StoryItem{ID: "B", MediaKind: domain.MediaKindImage, CreatedAt: t0.Add(-30 * time.Hour)}

	live := expiry.FilterLive([]domain.StoryItem{a, b}, t0, expiry.DefaultTTL)
	require.Equal(t, []domain.StoryItem{a}, live)

	m := newMachine(t, live...)
	m.ready(0)
	require.Equal(t, playback.StatePlaying, m.s.State)

	m.tick(4999 * time.Millisecond)
	require.Equal(t, playback.StatePlaying, m.s.State)
	m.tick(time.Millisecond)

	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndCompleted, m.s.EndReason)
}

func TestSession_VideoErrorEndsImmediately(t *testing.T) {
	m := newMachine(t, vid("v", 10*time.Second))
	m.ready(0)
	epoch := m.s.Epoch()

	m.do(playback.Event{Kind: playback.EvMediaStarted, Epoch: epoch})
	m.do(playback.Event{Kind: playback.EvMediaTimeUpdate, Epoch: epoch, Position: 3 * time.Second, Duration: 10 * time.Second})
	effects := m.do(playback.Event{Kind: playback.EvMediaError, Epoch: epoch, Reason: "decode error"})

	assert.Equal(t, []playback.EffectKind{playback.EffReleaseMedia, playback.EffNavigateAway}, kinds(effects))
	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndCompleted, m.s.EndReason)
}

func TestSession_FailedPreloadIsSkipped(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"))

	m.fail(0)
	assert.Equal(t, playback.StateLoading, m.s.State)
	assert.Equal(t, 1, m.s.Index)

	m.ready(1)
	assert.Equal(t, playback.StatePlaying, m.s.State)
	assert.Equal(t, 1, m.s.Index)

	m.fail(2)
	m.tick(5 * time.Second)
	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndCompleted, m.s.EndReason)
	assert.Equal(t, map[string]int{"b": 1}, m.recordedViews())
}

func TestSession_AllFailedIsUnplayable(t *testing.T) {
	m := newMachine(t, img("a"), vid("b", time.Second))
	m.fail(1)
	m.fail(0)

	assert.Equal(t, playback.StateEnded, m.s.State)
	assert.Equal(t, playback.EndUnplayable, m.s.EndReason)
	assert.Zero(t, m.count(playback.EffStartTimer)+m.count(playback.EffPlayMedia))
}

func TestSession_AdvancingWaitsForNextItem(t *testing.T) {
	m := newMachine(t, img("a"), vid("b", 10*time.Second))
	m.ready(0)

	m.tick(5 * time.Second)
	assert.Equal(t, playback.StateAdvancing, m.s.State)
	assert.Equal(t, 1, m.s.Index)
	assert.Zero(t, m.s.Progress)
	assert.Equal(t, []float64{1, 0}, m.s.Bars())

	m.ready(1)
	assert.Equal(t, playback.StatePlaying, m.s.State)
	assert.Equal(t, playback.EffPlayMedia, m.effects[len(m.effects)-1].Kind)
}

func TestSession_CloseReleasesAndEndsWithoutGrace(t *testing.T) {
	m := newMachine(t, vid("v", 10*time.Second), img("b"))
	m.ready(0, 1)

	effects := m.do(playback.Event{Kind: playback.EvClose})

	require.Equal(t, []playback.EffectKind{playback.EffReleaseMedia, playback.EffNavigateAway}, kinds(effects))
	assert.Zero(t, effects[1].Delay)
	assert.Equal(t, playback.EndClosed, m.s.EndReason)
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	cfg := playback.DefaultConfig()
	s, _ := playback.NewSession([]domain.StoryItem{img("a"), img("b")}, "42", cfg)

	next, _ := playback.Transition(s, playback.Event{Kind: playback.EvReadiness, Index: 0, Readiness: preload.Ready(), At: t0}, cfg)

	assert.Equal(t, playback.StateLoading, s.State)
	assert.Equal(t, preload.StatusPending, s.Readiness(0).Status)
	assert.False(t, s.Viewed(0))
	assert.Equal(t, playback.StatePlaying, next.State)
	assert.True(t, next.Viewed(0))
}

func TestSession_IndexStaysInRange(t *testing.T) {
	m := newMachine(t, img("a"), img("b"), img("c"))
	m.ready(0, 1, 2)

	prev := m.s.Index
	for i := 0; i < 20; i++ {
		m.advanceClock(400 * time.Millisecond)
		m.do(playback.Event{Kind: playback.EvNext})
		require.GreaterOrEqual(t, m.s.Index, 0)
		require.LessOrEqual(t, m.s.Index-prev, 1)
		require.GreaterOrEqual(t, m.s.Progress, 0.0)
		require.LessOrEqual(t, m.s.Progress, 1.0)
		prev = m.s.Index
	}
	assert.Equal(t, playback.StateEnded, m.s.State)
}
