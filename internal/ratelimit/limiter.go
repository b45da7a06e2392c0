package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Result is the outcome of one limiter hit.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Fixed wraps a ulule limiter with one rate.
type Fixed struct {
	lim *limiter.Limiter
}

// ParseRate accepts the ulule formatted rate, e.g. "60-M" or "5-S".
func ParseRate(formatted string) (limiter.Rate, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return limiter.Rate{}, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	return rate, nil
}

// NewRedis builds a limiter whose counters live in Redis so every API
// replica shares them.
func NewRedis(client redis.UniversalClient, prefix string, rate limiter.Rate) (*Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return &Fixed{lim: limiter.New(store, rate)}, nil
}

// NewMemory builds a process local limiter.
func NewMemory(prefix string, rate limiter.Rate) *Fixed {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})
	return &Fixed{lim: limiter.New(store, rate)}
}

// Allow implements Limiter.
func (f *Fixed) Allow(ctx context.Context, key string) (Result, error) {
	lctx, err := f.lim.Get(ctx, key)
	if err != nil {
		return Result{Allowed: true}, err
	}
	return Result{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
