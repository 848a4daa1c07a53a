package server

import (
	"context"
	"net"
	"sync"
	"time"
)

// RateLimiter implements rate limiting for FAILED authentication attempts.
//
// FAILED auth attempts per IP address per time window. Successful
// authentications are NOT counted and reset the failure counter.
//
// Flow:
//  1. Request for a protected route arrives
//  2. Check IsBlocked() - if true, reject with 429
//  3. Verify the bearer token
//  4. If verification FAILS: call RecordFailure()
//  5. If verification SUCCEEDS: call Reset() to clear failure count
type RateLimiter struct {
	mu       sync.RWMutex
	failures map[string]*rateLimitEntry
	limit    int           // max failures before blocking
	window   time.Duration // time window for counting failures
	now      func() time.Time
}

type rateLimitEntry struct {
	count     int       // number of failed attempts
	resetTime time.Time // when this entry expires
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - limit: maximum failed attempts before blocking
//   - window: time window for counting failures (e.g., 1 minute)
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		failures: make(map[string]*rateLimitEntry),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// SetClock replaces the clock. Used by tests.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// IsBlocked returns true if the IP has exceeded the failure limit.
// This should be called BEFORE attempting authentication.
func (rl *RateLimiter) IsBlocked(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok {
		return false
	}

	// Check if window has expired
	if rl.now().After(entry.resetTime) {
		return false
	}

	return entry.count >= rl.limit
}

// RecordFailure records a failed authentication attempt.
// This should be called AFTER a failed authentication.
func (rl *RateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.failures[ip]

	if !ok || now.After(entry.resetTime) {
		// New entry or window expired - start fresh
		rl.failures[ip] = &rateLimitEntry{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return
	}

	// Within window - increment counter
	entry.count++
}

// Reset clears the failure count for an IP (after successful auth).
func (rl *RateLimiter) Reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, ip)
}

// GetFailureCount returns the current failure count for an IP (for testing/monitoring).
func (rl *RateLimiter) GetFailureCount(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, ok := rl.failures[ip]
	if !ok {
		return 0
	}

	if rl.now().After(entry.resetTime) {
		return 0
	}

	return entry.count
}

// Run drops expired entries every window until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, entry := range rl.failures {
		if now.After(entry.resetTime) {
			delete(rl.failures, ip)
		}
	}
}

// tracked returns the number of IPs with a live entry.
func (rl *RateLimiter) tracked() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.failures)
}

// extractIP extracts the IP address from a remote address string.
func extractIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
