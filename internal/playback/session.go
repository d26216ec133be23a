package playback

import (
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/preload"
)

// Session is the complete playback state for one viewer watching one
// subject. It is a value: Transition returns a new Session and leaves its
// input untouched.
//
// Index is the current story. While Loading or Advancing it names the story
// being waited for; once Ended it keeps the last story shown.
type Session struct {
	Items     []domain.StoryItem
	Index     int
	State     State
	Progress  float64
	ViewerKey string
	EndReason EndReason

	readiness []preload.Readiness
	viewed    []bool
	played    bool
	skipped   bool
	elapsed   time.Duration
	epoch     uint64
	timer     uint64
	lockUntil time.Time
}

// NewSession snapshots items (already filtered to live stories and ordered
// newest first). An empty list yields an Ended session straight away.
func NewSession(items []domain.StoryItem, viewerKey string, cfg Config) (Session, []Effect) {
	s := Session{
		Items:     append([]domain.StoryItem(nil), items...),
		State:     StateLoading,
		ViewerKey: viewerKey,
		readiness: make([]preload.Readiness, len(items)),
		viewed:    make([]bool, len(items)),
	}
	if len(items) == 0 {
		t := &transition{s: s, cfg: cfg}
		t.end(EndNoContent)
		return t.s, t.effects
	}
	return s, nil
}

func (s Session) IsPaused() bool { return s.State == StatePaused }

func (s Session) IsEnded() bool { return s.State == StateEnded }

// Current returns the story at Index, if any.
func (s Session) Current() (domain.StoryItem, bool) {
	if s.Index < 0 || s.Index >= len(s.Items) {
		return domain.StoryItem{}, false
	}
	return s.Items[s.Index], true
}

func (s Session) Readiness(i int) preload.Readiness {
	if i < 0 || i >= len(s.readiness) {
		return preload.Readiness{}
	}
	return s.readiness[i]
}

// Viewed reports whether a view was already recorded for story i in this
// session.
func (s Session) Viewed(i int) bool {
	return i >= 0 && i < len(s.viewed) && s.viewed[i]
}

// Locked reports whether advance requests are suppressed at now.
func (s Session) Locked(now time.Time) bool {
	return now.Before(s.lockUntil)
}

func (s Session) Epoch() uint64 { return s.epoch }

func (s Session) Timer() uint64 { return s.timer }

// Bars returns one progress value per story: 1 for stories before the
// current one, Progress for the current one, 0 after it.
func (s Session) Bars() []float64 {
	bars := make([]float64, len(s.Items))
	for i := range bars {
		switch {
		case i < s.Index:
			bars[i] = 1
		case i == s.Index:
			bars[i] = s.Progress
		}
	}
	return bars
}

func (s Session) clone() Session {
	c := s
	c.readiness = append([]preload.Readiness(nil), s.readiness...)
	c.viewed = append([]bool(nil), s.viewed...)
	return c
}

// Transition applies ev to s. It is pure: the returned effects describe the
// I/O the driver has to perform.
func Transition(s Session, ev Event, cfg Config) (Session, []Effect) {
	if s.State == StateEnded {
		return s, nil
	}

	t := &transition{s: s.clone(), cfg: cfg, at: ev.At}

	switch ev.Kind {
	case EvReadiness:
		t.onReadiness(ev)
	case EvTick:
		t.onTick(ev)
	case EvHoldStart:
		t.onHoldStart()
	case EvHoldRelease:
		t.onHoldRelease()
	case EvMediaTimeUpdate:
		t.onTimeUpdate(ev)
	case EvMediaEnded, EvMediaError:
		if t.isCurrentMedia(ev.Epoch) && (t.s.State == StatePlaying || t.s.State == StatePaused) {
			t.complete()
		}
	case EvNext:
		t.next()
	case EvPrevious:
		t.previous()
	case EvClose:
		t.leave()
		t.end(EndClosed)
	case EvMediaStarted:
		// Nothing to do: the machine already considers the item playing.
	}

	return t.s, t.effects
}

type transition struct {
	s       Session
	cfg     Config
	at      time.Time
	effects []Effect
}

func (t *transition) emit(e Effect) {
	t.effects = append(t.effects, e)
}

func (t *transition) current() domain.StoryItem {
	return t.s.Items[t.s.Index]
}

func (t *transition) isCurrentMedia(epoch uint64) bool {
	if t.s.State != StatePlaying && t.s.State != StatePaused {
		return false
	}
	return epoch == t.s.epoch && t.current().MediaKind == domain.MediaKindVideo
}

func (t *transition) onReadiness(ev Event) {
	if ev.Index < 0 || ev.Index >= len(t.s.readiness) {
		return
	}
	if t.s.readiness[ev.Index].Status != preload.StatusPending || ev.Readiness.Status == preload.StatusPending {
		return
	}
	t.s.readiness[ev.Index] = ev.Readiness

	waiting := t.s.State == StateLoading || t.s.State == StateAdvancing
	if waiting && ev.Index == t.s.Index {
		t.enter(ev.Index)
	}
}

func (t *transition) onTick(ev Event) {
	if t.s.State != StatePlaying || ev.Timer != t.s.timer || t.current().MediaKind != domain.MediaKindImage {
		return
	}
	if ev.Elapsed > 0 {
		t.s.elapsed += ev.Elapsed
	}
	t.s.Progress = ratio(t.s.elapsed, t.cfg.ImageDuration)
	if t.s.Progress >= 1 {
		t.complete()
	}
}

func (t *transition) onTimeUpdate(ev Event) {
	if t.s.State != StatePlaying || !t.isCurrentMedia(ev.Epoch) || ev.Duration <= 0 {
		return
	}
	t.s.Progress = ratio(ev.Position, ev.Duration)
}

func (t *transition) onHoldStart() {
	if t.s.State != StatePlaying {
		return
	}
	t.s.State = StatePaused
	item := t.current()
	if item.MediaKind == domain.MediaKindImage {
		t.emit(Effect{Kind: EffStopTimer, Index: t.s.Index, Timer: t.s.timer})
		return
	}
	t.emit(Effect{Kind: EffPauseMedia, Index: t.s.Index, Epoch: t.s.epoch})
}

func (t *transition) onHoldRelease() {
	if t.s.State != StatePaused {
		return
	}
	t.s.State = StatePlaying
	item := t.current()
	if item.MediaKind == domain.MediaKindImage {
		t.s.timer++
		t.emit(Effect{Kind: EffStartTimer, Index: t.s.Index, Timer: t.s.timer})
		return
	}
	t.emit(Effect{Kind: EffPlayMedia, Index: t.s.Index, Epoch: t.s.epoch, StoryID: item.ID})
}

// next is the user initiated advance and honours the navigation lock.
func (t *transition) next() {
	if t.s.Locked(t.at) {
		return
	}
	t.s.skipped = true
	t.advance()
}

// complete is an advance caused by the current item finishing. Stale
// completions are already filtered by epoch or timer, so only the lock
// window is refreshed.
func (t *transition) complete() {
	t.advance()
}

func (t *transition) advance() {
	t.s.lockUntil = t.at.Add(t.cfg.NavigationLock)
	t.leave()
	t.enter(t.s.Index + 1)
}

func (t *transition) previous() {
	if t.s.Index <= 0 {
		return
	}
	target := -1
	for j := t.s.Index - 1; j >= 0; j-- {
		if t.s.readiness[j].Status != preload.StatusFailed {
			target = j
			break
		}
	}
	if target < 0 {
		return
	}

	t.leave()
	if t.s.readiness[target].Status == preload.StatusReady {
		t.play(target)
		return
	}
	t.wait(target)
}

// enter moves onto the first playable item at or after i. Failed items are
// skipped as if they had completed; a pending item is waited for.
func (t *transition) enter(i int) {
	for ; i < len(t.s.Items); i++ {
		switch t.s.readiness[i].Status {
		case preload.StatusFailed:
			continue
		case preload.StatusPending:
			t.wait(i)
			return
		default:
			t.play(i)
			return
		}
	}

	// Skipping past every story is a normal finish, not a media failure.
	if t.s.played || t.s.skipped {
		t.end(EndCompleted)
		return
	}
	t.end(EndUnplayable)
}

// wait parks the session on a story whose media is not ready yet.
func (t *transition) wait(i int) {
	t.s.Index = i
	t.s.Progress = 0
	t.s.elapsed = 0
	if t.s.played {
		t.s.State = StateAdvancing
		return
	}
	t.s.State = StateLoading
}

func (t *transition) play(i int) {
	item := t.s.Items[i]

	t.s.Index = i
	t.s.State = StatePlaying
	t.s.Progress = 0
	t.s.elapsed = 0
	t.s.played = true
	t.s.epoch++

	if !t.s.viewed[i] {
		t.s.viewed[i] = true
		t.emit(Effect{Kind: EffRecordView, Index: i, StoryID: item.ID})
	}

	if item.MediaKind == domain.MediaKindImage {
		t.s.timer++
		t.emit(Effect{Kind: EffStartTimer, Index: i, Timer: t.s.timer})
		return
	}
	t.emit(Effect{Kind: EffPlayMedia, Index: i, Epoch: t.s.epoch, StoryID: item.ID})
}

// leave releases whatever drives the current item.
func (t *transition) leave() {
	if t.s.State != StatePlaying && t.s.State != StatePaused {
		return
	}
	item := t.current()
	if item.MediaKind == domain.MediaKindImage {
		if t.s.State == StatePlaying {
			t.emit(Effect{Kind: EffStopTimer, Index: t.s.Index, Timer: t.s.timer})
		}
		return
	}
	t.emit(Effect{Kind: EffReleaseMedia, Index: t.s.Index, Epoch: t.s.epoch})
}

func (t *transition) end(reason EndReason) {
	if t.s.Index >= len(t.s.Items) {
		t.s.Index = max(len(t.s.Items)-1, 0)
	}
	t.s.State = StateEnded
	t.s.EndReason = reason
	if reason == EndCompleted {
		t.s.Progress = 1
	}

	delay := t.cfg.EndGrace
	if reason == EndClosed || reason == EndNoContent {
		delay = 0
	}
	t.emit(Effect{Kind: EffNavigateAway, Delay: delay, Reason: reason})
}

func ratio(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 1
	}
	r := float64(part) / float64(whole)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}
