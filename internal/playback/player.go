package playback

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/metrics"
	"github.com/orgball2608/fary-stories/internal/preload"
	"github.com/orgball2608/fary-stories/pkg/logger"
)

const recordViewTimeout = 5 * time.Second

//go:generate go run go.uber.org/mock/mockgen -source=player.go -destination=mocks/player_mock.go

type ViewRecorder interface {
	RecordView(ctx context.Context, storyID, viewerKey string) error
}

type Preloader interface {
	PreloadAll(ctx context.Context, items []domain.StoryItem) <-chan preload.Result
}

type Options struct {
	Config     Config
	Clock      clockwork.Clock
	Preloader  Preloader
	Transports TransportOpener
	Views      ViewRecorder
	Logger     logger.Logger
	// OnUpdate is called from the event loop after every processed event.
	OnUpdate func(Session)
}

// Player drives a Session: it feeds events into Transition one at a time
// and performs the resulting effects.
type Player struct {
	cfg        Config
	clock      clockwork.Clock
	preloader  Preloader
	transports TransportOpener
	views      ViewRecorder
	logger     logger.Logger
	onUpdate   func(Session)

	items     []domain.StoryItem
	viewerKey string

	events chan Event
	done   chan struct{}

	mu      sync.RWMutex
	session Session

	// Owned by the loop goroutine.
	ctx         context.Context
	cancel      context.CancelFunc
	pending     []Event
	tickCancel  context.CancelFunc
	media       map[uint64]*mediaHandle
	exitTimer   clockwork.Timer
	exitNow     bool
	wg          sync.WaitGroup
	startedOnce sync.Once
}

type mediaHandle struct {
	index     int
	transport Transport
	cancel    context.CancelFunc
}

func NewPlayer(items []domain.StoryItem, viewerKey string, opts Options) *Player {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	transports := opts.Transports
	if transports == nil {
		transports = ClockOpener{Clock: clock, Fallback: cfg.FallbackVideoDuration}
	}

	return &Player{
		cfg:        cfg,
		clock:      clock,
		preloader:  opts.Preloader,
		transports: transports,
		views:      opts.Views,
		logger:     log.WithComponent("Player"),
		onUpdate:   opts.OnUpdate,
		items:      items,
		viewerKey:  viewerKey,
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		media:      make(map[uint64]*mediaHandle),
	}
}

// Run plays the session until it ends, is closed, or ctx is canceled.
// It must be called once.
func (p *Player) Run(ctx context.Context) error {
	var started bool
	p.startedOnce.Do(func() { started = true })
	if !started {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	defer p.teardown()

	session, effects := NewSession(p.items, p.viewerKey, p.cfg)
	p.logger.Info("Playback session started", "stories", len(p.items), "viewer_key", p.viewerKey)
	p.apply(effects)
	p.publish(session)
	if session.State != StateEnded {
		p.startPreload()
	}

	for {
		for len(p.pending) > 0 && !p.exitNow {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			p.handle(ev)
		}
		if p.exitNow {
			return nil
		}

		var exitC <-chan time.Time
		if p.exitTimer != nil {
			exitC = p.exitTimer.Chan()
		}

		select {
		case <-ctx.Done():
			p.handle(Event{Kind: EvClose})
			return ctx.Err()
		case ev := <-p.events:
			p.handle(ev)
		case <-exitC:
			return nil
		}
	}
}

func (p *Player) Pause()    { p.send(Event{Kind: EvHoldStart}) }
func (p *Player) Resume()   { p.send(Event{Kind: EvHoldRelease}) }
func (p *Player) Next()     { p.send(Event{Kind: EvNext}) }
func (p *Player) Previous() { p.send(Event{Kind: EvPrevious}) }
func (p *Player) Close()    { p.send(Event{Kind: EvClose}) }

// Done is closed once the session is torn down.
func (p *Player) Done() <-chan struct{} { return p.done }

func (p *Player) Snapshot() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session.clone()
}

func (p *Player) send(ev Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	}
}

// post is used by helper goroutines; it gives up once the loop is gone.
func (p *Player) post(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func (p *Player) handle(ev Event) {
	if ev.At.IsZero() {
		ev.At = p.clock.Now()
	}

	p.mu.RLock()
	current := p.session
	p.mu.RUnlock()

	next, effects := Transition(current, ev, p.cfg)
	if next.State != current.State || next.Index != current.Index {
		p.logger.Debug("Playback transition",
			"event", ev.Kind.String(),
			"from", current.State.String(),
			"to", next.State.String(),
			"index", next.Index,
		)
	}

	p.apply(effects)
	p.publish(next)
}

func (p *Player) publish(s Session) {
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	if p.onUpdate != nil {
		p.onUpdate(s.clone())
	}
}

func (p *Player) apply(effects []Effect) {
	for _, e := range effects {
		switch e.Kind {
		case EffRecordView:
			p.recordView(e.StoryID)
		case EffStartTimer:
			p.startTicker(e.Timer)
		case EffStopTimer:
			p.stopTicker()
		case EffPlayMedia:
			p.playMedia(e)
		case EffPauseMedia:
			if h, ok := p.media[e.Epoch]; ok {
				if err := h.transport.Pause(); err != nil {
					p.logger.Warn("Failed to pause media", "index", e.Index, "error", err)
				}
			}
		case EffReleaseMedia:
			p.releaseMedia(e.Epoch)
		case EffNavigateAway:
			p.scheduleExit(e)
		}
	}
}

func (p *Player) startPreload() {
	if p.preloader == nil {
		for i := range p.items {
			p.pending = append(p.pending, Event{Kind: EvReadiness, Index: i, Readiness: preload.Ready()})
		}
		return
	}

	results := p.preloader.PreloadAll(p.ctx, p.items)
	ctx := p.ctx
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-results:
				if !ok {
					return
				}
				p.post(ctx, Event{Kind: EvReadiness, Index: r.Index, Readiness: r.Readiness})
			}
		}
	}()
}

func (p *Player) recordView(storyID string) {
	if p.views == nil {
		return
	}
	viewerKey := p.viewerKey
	ctx := context.WithoutCancel(p.ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, recordViewTimeout)
		defer cancel()

		if err := p.views.RecordView(ctx, storyID, viewerKey); err != nil {
			p.logger.Warn("Failed to record view", "story_id", storyID, "viewer_key", viewerKey, "error", err)
			metrics.ObserveViewRecorded("failed")
			return
		}
		metrics.ObserveViewRecorded("recorded")
	}()
}

func (p *Player) startTicker(timer uint64) {
	p.stopTicker()

	ctx, cancel := context.WithCancel(p.ctx)
	p.tickCancel = cancel
	ticker := p.clock.NewTicker(p.cfg.TickInterval)
	last := p.clock.Now()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				now := p.clock.Now()
				ev := Event{Kind: EvTick, At: now, Timer: timer, Elapsed: now.Sub(last)}
				last = now
				p.post(ctx, ev)
			}
		}
	}()
}

func (p *Player) stopTicker() {
	if p.tickCancel != nil {
		p.tickCancel()
		p.tickCancel = nil
	}
}

func (p *Player) playMedia(e Effect) {
	if h, ok := p.media[e.Epoch]; ok {
		if err := h.transport.Play(); err != nil {
			p.pending = append(p.pending, Event{Kind: EvMediaError, Epoch: e.Epoch, Reason: err.Error()})
		}
		return
	}

	item := p.items[e.Index]
	transport, err := p.transports.Open(p.ctx, item)
	if err != nil {
		p.logger.Warn("Failed to open media", "story_id", item.ID, "error", err)
		p.pending = append(p.pending, Event{Kind: EvMediaError, Epoch: e.Epoch, Reason: err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.media[e.Epoch] = &mediaHandle{index: e.Index, transport: transport, cancel: cancel}

	epoch := e.Epoch
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case me, ok := <-transport.Events():
				if !ok {
					return
				}
				p.post(ctx, mediaEvent(epoch, me))
			}
		}
	}()

	if err := transport.Play(); err != nil {
		p.pending = append(p.pending, Event{Kind: EvMediaError, Epoch: e.Epoch, Reason: err.Error()})
	}
}

func mediaEvent(epoch uint64, me MediaEvent) Event {
	ev := Event{Epoch: epoch, Position: me.Position, Duration: me.Duration, Reason: me.Reason}
	switch me.Kind {
	case MediaStarted:
		ev.Kind = EvMediaStarted
	case MediaTimeUpdated:
		ev.Kind = EvMediaTimeUpdate
	case MediaEnded:
		ev.Kind = EvMediaEnded
	default:
		ev.Kind = EvMediaError
	}
	return ev
}

func (p *Player) releaseMedia(epoch uint64) {
	h, ok := p.media[epoch]
	if !ok {
		return
	}
	delete(p.media, epoch)
	h.cancel()
	if err := h.transport.Close(); err != nil {
		p.logger.Warn("Failed to close media", "index", h.index, "error", err)
	}
}

func (p *Player) scheduleExit(e Effect) {
	p.logger.Info("Playback session ended", "reason", e.Reason.String())
	metrics.ObservePlaybackSession(e.Reason.String())

	if e.Delay <= 0 {
		p.exitNow = true
		return
	}
	p.exitTimer = p.clock.NewTimer(e.Delay)
}

// teardown cancels every timer and media subscription and waits for helper
// goroutines before signaling Done.
func (p *Player) teardown() {
	p.stopTicker()
	if p.exitTimer != nil {
		p.exitTimer.Stop()
	}
	for epoch := range p.media {
		p.releaseMedia(epoch)
	}
	p.cancel()
	p.wg.Wait()
	close(p.done)
}
