package crawler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out requests per host. Each host may receive burst
// requests per delay window, so a pool of burst workers each pausing delay
// between pages is matched without letting them stampede.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
	burst    int
}

// NewRateLimiter creates a rate limiter. A zero delay disables limiting.
func NewRateLimiter(delay time.Duration, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
		burst:    burst,
	}
}

// Wait blocks until a request to urlStr's host is allowed
func (r *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if r == nil || r.delay <= 0 {
		return nil
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	return r.getLimiter(parsedURL.Host).Wait(ctx)
}

// getLimiter gets or creates the limiter for a host
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limit := rate.Every(r.delay / time.Duration(r.burst))
	limiter = rate.NewLimiter(limit, r.burst)
	r.limiters[host] = limiter

	return limiter
}
