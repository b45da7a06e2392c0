package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/health"
)

type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func okProbe(name string) health.Probe {
	return health.Probe{Name: name, Check: func(context.Context) error { return nil }}
}

func ready(t *testing.T, h health.Handler) (int, readyBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr.Code, body
}

func TestLive(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadySuccess(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{okProbe("postgres"), okProbe("redis")}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
}

func TestReadyFailure(t *testing.T) {
	failing := health.Probe{Name: "postgres", Check: func(context.Context) error { return errors.New("db down") }}
	code, body := ready(t, health.Handler{Probes: []health.Probe{failing, okProbe("redis")}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Status)
	require.Equal(t, "db down", body.Checks["postgres"])
	require.Equal(t, "ok", body.Checks["redis"])
}

func TestReadyProbeTimeout(t *testing.T) {
	slow := health.Probe{Name: "slow", Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	code, body := ready(t, health.Handler{Probes: []health.Probe{slow}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

func TestRedisProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, _ := ready(t, health.Handler{Probes: []health.Probe{health.RedisProbe(client)}})
	require.Equal(t, http.StatusOK, code)

	mr.Close()
	code, body := ready(t, health.Handler{Probes: []health.Probe{health.RedisProbe(client)}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.NotEqual(t, "ok", body.Checks["redis"])
}

func TestNilDependenciesReportUnavailable(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{health.PostgresProbe(nil), health.RedisProbe(nil)}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "dependency not configured", body.Checks["postgres"])
	require.Equal(t, "dependency not configured", body.Checks["redis"])
}
