package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/ratelimit"
)

func serve(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/totals", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestMiddlewareEnforcesLimitMemory(t *testing.T) {
	rate, err := ratelimit.ParseRate("1-M")
	require.NoError(t, err)
	h := ratelimit.Handler{Limiter: ratelimit.NewMemory("test", rate)}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(t, h).Code)
	rec := serve(t, h)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareEnforcesLimitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rate, err := ratelimit.ParseRate("2-M")
	require.NoError(t, err)
	lim, err := ratelimit.NewRedis(client, "rl", rate)
	require.NoError(t, err)
	h := ratelimit.Handler{Limiter: lim, Key: ratelimit.BySession}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(t, h).Code)
	require.Equal(t, http.StatusOK, serve(t, h).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(t, h).Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("store down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var seen error
	h := ratelimit.Handler{Limiter: failingLimiter{}, OnError: func(err error) { seen = err }}.Middleware(okHandler())
	require.Equal(t, http.StatusOK, serve(t, h).Code)
	require.EqualError(t, seen, "store down")
}

func TestParseRateRejectsGarbage(t *testing.T) {
	_, err := ratelimit.ParseRate("lots")
	require.Error(t, err)
}
