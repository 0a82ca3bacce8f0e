package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hrygo/atlas/plugin/ai/cache"
)

const (
	// DefaultRate is the sustained number of requests per second per client.
	DefaultRate = 10
	// DefaultBurst is the burst size per client.
	DefaultBurst = 20

	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// RateLimiter provides per-key token bucket rate limiting.
type RateLimiter struct {
	limit   rate.Limit
	burst   int

	mu      sync.Mutex
	clients *cache.LRUCache[*rate.Limiter]
}

// NewRateLimiter creates a rate limiter allowing 10 requests per second with a burst of 20.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWith(DefaultRate, DefaultBurst)
}

// NewRateLimiterWith creates a rate limiter with the given rate and burst.
func NewRateLimiterWith(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clients: cache.NewLRUCache[*rate.Limiter](maxTrackedClients, clientIdleTTL),
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.clients.Get(key); ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Set(key, limiter, 0)
	return limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Middleware rejects requests over the client's budget with 429.
// Clients are keyed by their real IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many requests"})
			}
			return next(c)
		}
	}
}
