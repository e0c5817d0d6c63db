// Package ratelimit throttles requests per client IP with token buckets from
// golang.org/x/time/rate. It guards the login endpoint.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/tourdesk/internal/app/system/jsonutil"
	"github.com/dalemusser/tourdesk/internal/app/system/network"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxTracked bounds the number of remembered clients; past it the cache is reset.
const maxTracked = 10000

// limiterCache is a rate limiter cache keyed by client, with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](limit rate.Limit, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     limit,
		burst:    burst,
	}
}

// get returns the limiter for key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()
	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}
	if len(lc.limiters) >= maxTracked {
		lc.limiters = make(map[K]*rate.Limiter)
	}
	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

func (lc *limiterCache[K]) size() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// Limiter throttles requests per client IP.
type Limiter struct {
	cache  *limiterCache[string]
	logger *zap.Logger
}

// PerMinute allows n requests per minute per IP with a burst of n.
// A non-positive n disables limiting.
func PerMinute(n int, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if n <= 0 {
		return &Limiter{logger: logger}
	}
	return &Limiter{
		cache:  newLimiterCache[string](rate.Every(time.Minute/time.Duration(n)), n),
		logger: logger,
	}
}

// Allow consumes one token for ip if available.
func (l *Limiter) Allow(ip string) bool {
	if l == nil || l.cache == nil {
		return true
	}
	return l.cache.get(ip).Allow()
}

// Middleware answers 429 with the JSON envelope once a client exceeds its rate.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := network.GetClientIP(r)
		if !l.Allow(ip) {
			l.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path))
			jsonutil.TooManyRequests(w, "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
