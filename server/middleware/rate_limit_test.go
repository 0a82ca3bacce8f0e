package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWith(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients have separate buckets")
}

func TestRateLimiter_ConcurrentNewClient(t *testing.T) {
	tests := []struct {
		name    string
		burst   int
		callers int
	}{
		{name: "burst of one", burst: 1, callers: 32},
		{name: "burst of five", burst: 5, callers: 64},
		{name: "callers within burst", burst: 8, callers: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiterWith(0.001, tt.burst)

			var (
				wg      sync.WaitGroup
				allowed atomic.Int64
				start   = make(chan struct{})
			)
			for i := 0; i < tt.callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if rl.Allow("198.51.100.7") {
						allowed.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int64(min(tt.burst, tt.callers)), allowed.Load())
			assert.Equal(t, 1, rl.clients.Size())
		})
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWith(1, 2)
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	}, rl.Middleware())

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("192.0.2.1"))
	assert.Equal(t, http.StatusOK, do("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("192.0.2.1"))
	assert.Equal(t, http.StatusOK, do("192.0.2.2"))
}
