package security

import (
	"sync"
	"time"

	"github.com/coder/websocket"
)

// RateLimiter is a fixed-window per-connection message limiter. Each
// connection owns its own limiter, so Allow is only contended by the
// connection's read loop and tests.
type RateLimiter struct {
	mu        sync.Mutex
	count     int
	lastReset time.Time
	maxTokens int
	window    time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
// maxTokens: maximum messages per window
// window: time window for rate limiting (e.g., 1 second)
func NewRateLimiter(maxTokens int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		lastReset: time.Now(),
		maxTokens: maxTokens,
		window:    window,
		now:       time.Now,
	}
}

// WithClock replaces the limiter's time source.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	rl.lastReset = now()
	return rl
}

// Allow checks if another message may be processed in the current window.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastReset) >= rl.window {
		rl.count = 0
		rl.lastReset = now
	}

	rl.count++
	return rl.count <= rl.maxTokens
}

// OriginValidator validates WebSocket connection origins
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{
		allowedPatterns: patterns,
	}
}

// AcceptOptions returns websocket.AcceptOptions with origin patterns
func (ov *OriginValidator) AcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}
