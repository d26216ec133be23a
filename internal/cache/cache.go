// Package cache holds small, expiring blobs such as identity profiles.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock.go

// Cache failures are never fatal: a failed Get is a miss and a failed Set is
// dropped.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// GetJSON decodes the cached value at key into dest.
func GetJSON(ctx context.Context, c Cache, key string, dest any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.Set(ctx, key, raw, ttl)
}

// Noop is used when no Redis address is configured.
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
func (Noop) Delete(context.Context, string)                     {}
