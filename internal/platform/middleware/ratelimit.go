package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int64
	// CleanupInterval controls how often idle client buckets are dropped.
	// Zero disables the cleanup goroutine.
	CleanupInterval time.Duration
	// Buckets, when set, tracks the number of client buckets.
	Buckets prometheus.Gauge
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		CleanupInterval:   10 * time.Minute,
	}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	cfg     RateLimitConfig
	clients map[string]*ratelimit.Bucket
	mu      sync.RWMutex
	done    chan struct{}
	once    sync.Once
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimitConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig().Burst
	}
	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*ratelimit.Bucket),
		done:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) bucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	b, ok := rl.clients[clientIP]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.clients[clientIP]; !ok {
		b = ratelimit.NewBucketWithRate(rl.cfg.RequestsPerSecond, rl.cfg.Burst)
		rl.clients[clientIP] = b
		if rl.cfg.Buckets != nil {
			rl.cfg.Buckets.Set(float64(len(rl.clients)))
		}
	}
	return b
}

// cleanup drops buckets that have refilled completely, i.e. idle clients.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.clients {
		if b.Available() == b.Capacity() {
			delete(rl.clients, ip)
		}
	}
	if rl.cfg.Buckets != nil {
		rl.cfg.Buckets.Set(float64(len(rl.clients)))
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// Middleware takes one token per request from the client's bucket and
// answers 429 when it is empty.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := strconv.FormatInt(rl.cfg.Burst, 10)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := rl.bucket(c.RealIP())
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			if b.TakeAvailable(1) < 1 {
				retry := int(1/rl.cfg.RequestsPerSecond) + 1
				h.Set("X-RateLimit-Remaining", "0")
				h.Set("Retry-After", strconv.Itoa(retry))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			h.Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
			return next(c)
		}
	}
}
