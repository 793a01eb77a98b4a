// Package ratelimit paces page loads during batch analysis.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures batch pacing.
type Config struct {
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `json:"burst" yaml:"burst"`
	HostDelay         time.Duration `json:"host_delay" yaml:"host_delay"` // minimum gap between loads of the same host
	Adaptive          bool          `json:"adaptive" yaml:"adaptive"`
	MinRate           float64       `json:"min_rate" yaml:"min_rate"`
}

// DefaultConfig returns a conservative pace for real sites.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             2,
		HostDelay:         500 * time.Millisecond,
		Adaptive:          true,
		MinRate:           0.2,
	}
}

// Limiter implements global and per-host rate limiting.
type Limiter struct {
	mu           sync.RWMutex
	limiter      *rate.Limiter
	perHost      map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	hostDelay    time.Duration
	lastRequest  map[string]time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		perHost:      make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		lastRequest:  make(map[string]time.Time),
	}
}

// Wait blocks until a load is allowed or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitURL applies the global limit, then the limit and delay for the URL's
// host. Unparseable URLs only pass the global limit.
func (l *Limiter) WaitURL(ctx context.Context, rawURL string) error {
	return l.WaitHost(ctx, Host(rawURL))
}

// WaitHost blocks until a load of host is allowed.
func (l *Limiter) WaitHost(ctx context.Context, host string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	if host == "" {
		return nil
	}

	l.mu.Lock()
	hostLimiter, exists := l.perHost[host]
	if !exists {
		hostLimiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.perHost[host] = hostLimiter
	}

	if l.hostDelay > 0 {
		if last, ok := l.lastRequest[host]; ok {
			if elapsed := time.Since(last); elapsed < l.hostDelay {
				l.mu.Unlock()
				select {
				case <-time.After(l.hostDelay - elapsed):
				case <-ctx.Done():
					return ctx.Err()
				}
				l.mu.Lock()
			}
		}
		l.lastRequest[host] = time.Now()
	}
	l.mu.Unlock()

	return hostLimiter.Wait(ctx)
}

// SetHostDelay sets the minimum delay between loads of the same host.
func (l *Limiter) SetHostDelay(delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hostDelay = delay
}

// Allow checks if a load is allowed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate updates the global rate limit.
func (l *Limiter) SetRate(requestsPerSecond float64, burst int) {
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
	l.limiter.SetBurst(burst)
	l.mu.Lock()
	l.defaultRate = rate.Limit(requestsPerSecond)
	l.defaultBurst = burst
	l.mu.Unlock()
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LimiterStats{
		HostCount:    len(l.perHost),
		DefaultRate:  float64(l.defaultRate),
		DefaultBurst: l.defaultBurst,
		HostDelay:    l.hostDelay,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	HostCount    int           `json:"host_count"`
	DefaultRate  float64       `json:"default_rate"`
	DefaultBurst int           `json:"default_burst"`
	HostDelay    time.Duration `json:"host_delay"`
}

// Host returns the lowercased host of rawURL, or "" when it has none.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// AdaptiveRateLimiter slows down when page loads start failing and
// speeds back up when they succeed.
type AdaptiveRateLimiter struct {
	*Limiter
	mu           sync.Mutex
	minRate      float64
	maxRate      float64
	currentRate  float64
	errorCount   int
	successCount int
	windowSize   int
}

// NewAdaptiveRateLimiter creates a new adaptive rate limiter.
func NewAdaptiveRateLimiter(minRate, maxRate float64, burst int) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		Limiter:     NewLimiter(maxRate, burst),
		minRate:     minRate,
		maxRate:     maxRate,
		currentRate: maxRate,
		windowSize:  20,
	}
}

// New builds the limiter described by cfg.
func New(cfg Config) *AdaptiveRateLimiter {
	minRate := cfg.MinRate
	if !cfg.Adaptive || minRate <= 0 || minRate > cfg.RequestsPerSecond {
		minRate = cfg.RequestsPerSecond
	}
	a := NewAdaptiveRateLimiter(minRate, cfg.RequestsPerSecond, cfg.Burst)
	a.SetHostDelay(cfg.HostDelay)
	return a
}

// RecordSuccess records a successful load.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.checkAndAdjust()
}

// RecordError records a failed load.
func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.checkAndAdjust()
}

// checkAndAdjust adjusts the rate based on the error ratio of the last window.
func (a *AdaptiveRateLimiter) checkAndAdjust() {
	total := a.successCount + a.errorCount
	if total < a.windowSize {
		return
	}

	errorRate := float64(a.errorCount) / float64(total)

	if errorRate > 0.1 {
		a.currentRate = a.currentRate * 0.8
		if a.currentRate < a.minRate {
			a.currentRate = a.minRate
		}
	} else if errorRate < 0.01 {
		a.currentRate = a.currentRate * 1.1
		if a.currentRate > a.maxRate {
			a.currentRate = a.maxRate
		}
	}

	a.SetRate(a.currentRate, a.defaultBurst)

	a.successCount = 0
	a.errorCount = 0
}

// CurrentRate returns the current rate.
func (a *AdaptiveRateLimiter) CurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}
