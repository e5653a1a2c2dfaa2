package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/appointment-booking/internal/config"
	"github.com/iliyamo/appointment-booking/internal/logging"
)

func limitedServer(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(cfg, rdb, logging.Discard()))
	return e, mr
}

func post(e *echo.Echo) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "ip_route", Prefix: "rl:test",
	}
	e, mr := limitedServer(t, cfg)

	assert.Equal(t, http.StatusCreated, post(e).Code)
	rec := post(e)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = post(e)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("rl:test:ip:10.0.0.1:route:POST /v1/bookings"))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	e := echo.New()
	e.POST("/v1/bookings", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusCreated, post(e).Code)
	}
}

func TestTokenBucketFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e, mr := limitedServer(t, cfg)
	mr.Close()
	require.Equal(t, http.StatusCreated, post(e).Code)
}
