// Package preload warms story media ahead of playback and reports readiness
// per item.
package preload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/internal/metrics"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Readiness struct {
	Status Status
	Reason string
}

func Ready() Readiness { return Readiness{Status: StatusReady} }

func Failed(reason string) Readiness { return Readiness{Status: StatusFailed, Reason: reason} }

type Result struct {
	Index     int
	StoryID   string
	Readiness Readiness
}

//go:generate go run go.uber.org/mock/mockgen -source=preload.go -destination=mocks/mock.go

// Fetcher brings one item's media to a playable state.
type Fetcher interface {
	Warm(ctx context.Context, item domain.StoryItem) error
}

type Preloader struct {
	pool    *ants.Pool
	fetcher Fetcher
	timeout time.Duration
	logger  logger.Logger
}

func New(pool *ants.Pool, fetcher Fetcher, timeout time.Duration, log logger.Logger) *Preloader {
	return &Preloader{
		pool:    pool,
		fetcher: fetcher,
		timeout: timeout,
		logger:  log.WithComponent("Preloader"),
	}
}

// Preload warms a single item. It never returns Pending.
func (p *Preloader) Preload(ctx context.Context, item domain.StoryItem) Readiness {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err := p.fetcher.Warm(ctx, item)
	if err == nil {
		metrics.ObservePreload(string(item.MediaKind), "ready")
		return Ready()
	}

	reason := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "preload timed out"
	}
	p.logger.Warn("Preload failed", "story_id", item.ID, "kind", item.MediaKind, "error", err)
	metrics.ObservePreload(string(item.MediaKind), "failed")
	return Failed(reason)
}

// PreloadAll warms every item concurrently on the worker pool. The returned
// channel yields exactly one Result per item in completion order and is
// closed afterwards.
func (p *Preloader) PreloadAll(ctx context.Context, items []domain.StoryItem) <-chan Result {
	out := make(chan Result, len(items))

	go func() {
		var wg sync.WaitGroup
		for i, item := range items {
			wg.Add(1)
			idx, it := i, item
			err := p.pool.Submit(func() {
				defer wg.Done()
				out <- Result{Index: idx, StoryID: it.ID, Readiness: p.Preload(ctx, it)}
			})
			if err != nil {
				wg.Done()
				p.logger.Error("Failed to submit preload task", "story_id", it.ID, "error", err)
				out <- Result{Index: idx, StoryID: it.ID, Readiness: Failed("preload queue unavailable")}
			}
		}
		wg.Wait()
		close(out)
	}()

	return out
}
