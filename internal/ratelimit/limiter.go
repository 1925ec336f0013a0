// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces out repeated extractions against the same host.
type Throttle interface {
	// Wait blocks until a run against urlStr may start or ctx ends.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a run may start now, consuming a token if so.
	Allow(urlStr string) bool

	// Delay reports how long the next run against urlStr would wait
	// without consuming a token.
	Delay(urlStr string) time.Duration
}

// HostLimiter keeps one token bucket per host. Watch loops share one
// limiter so a short interval on the command line cannot hammer a site.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	every    rate.Limit
	burst    int
	now      func() time.Time
}

// NewHostLimiter allows one run per interval per host, with burst runs
// available up front.
func NewHostLimiter(interval time.Duration, burst int) *HostLimiter {
	if interval <= 0 {
		interval = time.Minute
	}
	if burst <= 0 {
		burst = 1
	}

	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(interval),
		burst:    burst,
		now:      time.Now,
	}
}

// Wait blocks until the host of urlStr has a token.
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	return hl.getLimiter(HostKey(urlStr)).Wait(ctx)
}

// Allow takes a token for the host of urlStr if one is available.
func (hl *HostLimiter) Allow(urlStr string) bool {
	return hl.getLimiter(HostKey(urlStr)).AllowN(hl.now(), 1)
}

// Delay reports the wait for the next token without taking it.
func (hl *HostLimiter) Delay(urlStr string) time.Duration {
	limiter := hl.getLimiter(HostKey(urlStr))
	now := hl.now()
	r := limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// SetInterval changes the spacing for one host.
func (hl *HostLimiter) SetInterval(host string, interval time.Duration, burst int) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	key := strings.ToLower(host)
	if limiter, exists := hl.limiters[key]; exists {
		limiter.SetLimit(rate.Every(interval))
		limiter.SetBurst(burst)
	} else {
		hl.limiters[key] = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// getLimiter returns or creates the bucket for a host
func (hl *HostLimiter) getLimiter(host string) *rate.Limiter {
	hl.mu.RLock()
	limiter, exists := hl.limiters[host]
	hl.mu.RUnlock()

	if exists {
		return limiter
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := hl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(hl.every, hl.burst)
	hl.limiters[host] = limiter
	return limiter
}

// HostKey lowercases the host of urlStr. Unparseable URLs share one bucket.
func HostKey(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
