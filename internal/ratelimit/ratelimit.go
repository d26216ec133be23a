package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

//go:generate go run go.uber.org/mock/mockgen -source=ratelimit.go -destination=mocks/mock.go

// Limiter throttles actions per key, e.g. publishes per subject.
type Limiter interface {
	Allow(key string) bool
}

// InMemoryLimiter keeps one token bucket per key.
type InMemoryLimiter struct {
	buckets map[string]*rate.Limiter
	mu      sync.Mutex
	r       rate.Limit
	b       int
}

// NewInMemoryLimiter allows requests actions per period with the given burst.
// Example: NewInMemoryLimiter(20, time.Hour, 5) -> 20 publishes an hour, 5 in a row.
func NewInMemoryLimiter(requests int, per time.Duration, burst int) *InMemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &InMemoryLimiter{
		buckets: make(map[string]*rate.Limiter),
		r:       rate.Every(per / time.Duration(requests)),
		b:       burst,
	}
}

var _ Limiter = (*InMemoryLimiter)(nil)

func (l *InMemoryLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.buckets[key]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.buckets[key] = limiter
	}

	return limiter.Allow()
}

// Unlimited never throttles.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }
