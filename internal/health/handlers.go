package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the process readiness flag. The API clears it when a
// shutdown signal arrives so load balancers drain traffic first.
func SetReady(v bool) { ready.Store(v) }

// Probe checks a single dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

// PostgresProbe pings the connection pool.
func PostgresProbe(pool *pgxpool.Pool) Probe {
	return Probe{Name: "postgres", Check: func(ctx context.Context) error {
		if pool == nil {
			return errUnavailable
		}
		return pool.Ping(ctx)
	}}
}

// RedisProbe pings redis. The rate cache and order locks both live there.
func RedisProbe(client redis.UniversalClient) Probe {
	return Probe{Name: "redis", Timeout: 300 * time.Millisecond, Check: func(ctx context.Context) error {
		if client == nil {
			return errUnavailable
		}
		return client.Ping(ctx).Err()
	}}
}

// Handler exposes liveness and readiness endpoints.
type Handler struct {
	Probes []Probe
	Logger zerolog.Logger
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 when any fails or the
// process is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		common.JSON(w, http.StatusServiceUnavailable, readyResponse{Status: "draining", Checks: map[string]string{}})
		return
	}

	checks := h.run(r.Context())
	resp := readyResponse{Status: "ok", Checks: checks}
	status := http.StatusOK
	for name, result := range checks {
		if result != "ok" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			h.Logger.Warn().Str("probe", name).Str("result", result).Msg("readiness probe failed")
		}
	}
	common.JSON(w, status, resp)
}

func (h Handler) run(ctx context.Context) map[string]string {
	out := make(map[string]string, len(h.Probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range h.Probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = defaultProbeTimeout
			}
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			result := "ok"
			if p.Check == nil {
				result = errUnavailable.Error()
			} else if err := p.Check(pctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			out[p.Name] = result
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return out
}
