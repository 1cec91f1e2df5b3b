// Package ratelimit implements a per-client request limiter for the
// mutating API endpoints. Counting is per source IP over a fixed
// one-minute window.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// StaleAfter controls when an idle client entry is dropped.
	StaleAfter time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

// bucket tracks request counts for one client within the current
// window.
type bucket struct {
	windowStart time.Time
	lastSeen    time.Time
	count       int
}

// Limiter counts requests per client IP and rejects those that exceed
// the per-minute budget.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit      int
	staleAfter time.Duration

	rejected atomic.Int64

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewLimiter creates a limiter and starts its background cleanup.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultConfig().StaleAfter
	}

	l := &Limiter{
		buckets:     make(map[string]*bucket),
		limit:       config.RequestsPerMinute,
		staleAfter:  config.StaleAfter,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop(config.CleanupInterval)
	return l
}

// Allow reports whether a request from the given client IP fits within
// the current window's budget.
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[clientIP]
	if !ok || now.Sub(b.windowStart) > time.Minute {
		l.buckets[clientIP] = &bucket{windowStart: now, lastSeen: now, count: 1}
		return true
	}

	b.count++
	b.lastSeen = now
	if b.count > l.limit {
		l.rejected.Add(1)
		return false
	}
	return true
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.dropStale()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) dropStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.staleAfter)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

// Metrics is a snapshot of limiter activity.
type Metrics struct {
	TrackedClients int
	Rejected       int64
}

// GetMetrics returns the current limiter metrics.
func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	tracked := len(l.buckets)
	l.mu.Unlock()

	return Metrics{
		TrackedClients: tracked,
		Rejected:       l.rejected.Load(),
	}
}

// Stop shuts down the background cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
