package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/fary-stories/internal/domain"
)

type MediaEventKind int

const (
	MediaStarted MediaEventKind = iota
	MediaTimeUpdated
	MediaEnded
	MediaErrored
)

// MediaEvent is what a video transport reports while it plays.
type MediaEvent struct {
	Kind     MediaEventKind
	Position time.Duration
	Duration time.Duration
	Reason   string
}

//go:generate go run go.uber.org/mock/mockgen -source=transport.go -destination=mocks/transport_mock.go

// Transport is a video element: it is started, paused and finally closed,
// and reports progress on Events until closed.
type Transport interface {
	Play() error
	Pause() error
	CurrentTime() time.Duration
	Duration() time.Duration
	Events() <-chan MediaEvent
	Close() error
}

type TransportOpener interface {
	Open(ctx context.Context, item domain.StoryItem) (Transport, error)
}

var ErrTransportClosed = errors.New("transport closed")

// ClockOpener opens clock driven transports. Useful where no real decoder
// exists, e.g. headless or terminal playback.
type ClockOpener struct {
	Clock    clockwork.Clock
	Fallback time.Duration
	Interval time.Duration
}

func (o ClockOpener) Open(_ context.Context, item domain.StoryItem) (Transport, error) {
	d := item.MediaDuration()
	if d <= 0 {
		d = o.Fallback
	}
	return NewClockTransport(o.Clock, d, o.Interval), nil
}

// ClockTransport advances a virtual play head on a clock.
type ClockTransport struct {
	clock    clockwork.Clock
	duration time.Duration
	interval time.Duration
	events   chan MediaEvent

	mu        sync.Mutex
	position  time.Duration
	startedAt time.Time
	playing   bool
	started   bool
	finished  bool
	closed    bool
	ticker    clockwork.Ticker
	stop      chan struct{}
	wg        sync.WaitGroup
}

var _ Transport = (*ClockTransport)(nil)

func NewClockTransport(clock clockwork.Clock, duration, interval time.Duration) *ClockTransport {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &ClockTransport{
		clock:    clock,
		duration: duration,
		interval: interval,
		events:   make(chan MediaEvent, 16),
		stop:     make(chan struct{}),
	}
}

func (t *ClockTransport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if t.playing || t.finished {
		return nil
	}
	if t.duration <= 0 {
		t.finished = true
		t.send(MediaEvent{Kind: MediaErrored, Reason: "unknown media duration"})
		return nil
	}

	t.playing = true
	t.startedAt = t.clock.Now()
	if !t.started {
		t.started = true
		t.send(MediaEvent{Kind: MediaStarted, Duration: t.duration})
		t.ticker = t.clock.NewTicker(t.interval)
		t.wg.Add(1)
		go t.run(t.ticker)
	}
	return nil
}

func (t *ClockTransport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if t.playing {
		t.position = t.currentLocked()
		t.playing = false
	}
	return nil
}

func (t *ClockTransport) CurrentTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked()
}

func (t *ClockTransport) Duration() time.Duration { return t.duration }

func (t *ClockTransport) Events() <-chan MediaEvent { return t.events }

func (t *ClockTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.playing = false
	close(t.stop)
	t.mu.Unlock()

	t.wg.Wait()
	if t.ticker != nil {
		t.ticker.Stop()
	}
	close(t.events)
	return nil
}

func (t *ClockTransport) run(ticker clockwork.Ticker) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.Chan():
			events, done := t.step()
			for _, ev := range events {
				t.send(ev)
			}
			if done {
				return
			}
		}
	}
}

// step samples the play head and reports whether playback finished.
func (t *ClockTransport) step() ([]MediaEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.playing || t.closed {
		return nil, false
	}
	pos := t.currentLocked()
	if pos < t.duration {
		return []MediaEvent{{Kind: MediaTimeUpdated, Position: pos, Duration: t.duration}}, false
	}

	t.position = t.duration
	t.playing = false
	t.finished = true
	return []MediaEvent{
		{Kind: MediaTimeUpdated, Position: t.duration, Duration: t.duration},
		{Kind: MediaEnded, Position: t.duration, Duration: t.duration},
	}, true
}

func (t *ClockTransport) currentLocked() time.Duration {
	pos := t.position
	if t.playing {
		pos += t.clock.Since(t.startedAt)
	}
	if pos > t.duration {
		pos = t.duration
	}
	return pos
}

// send drops time updates when the consumer lags; terminal events always
// get through.
func (t *ClockTransport) send(ev MediaEvent) {
	if ev.Kind == MediaTimeUpdated {
		select {
		case t.events <- ev:
		default:
		}
		return
	}
	select {
	case t.events <- ev:
	case <-t.stop:
	}
}
