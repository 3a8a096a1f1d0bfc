package notification

import (
	"sync"
	"time"
)

// PushRateLimiter is a token bucket bounding how fast alerts are pushed,
// so that a flapping sensor cannot flood the notification services.
type PushRateLimiter struct {
	rate       int           // tokens per interval
	interval   time.Duration // time window for rate
	tokens     int
	maxTokens  int // burst capacity
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// PushRateLimiterConfig holds configuration for rate limiting.
type PushRateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// DefaultPushRateLimiterConfig returns the default push rate.
func DefaultPushRateLimiterConfig() PushRateLimiterConfig {
	return PushRateLimiterConfig{
		RequestsPerMinute: 30,
		BurstSize:         10,
	}
}

// NewPushRateLimiter creates a new token bucket rate limiter.
func NewPushRateLimiter(config PushRateLimiterConfig) *PushRateLimiter {
	def := DefaultPushRateLimiterConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = def.BurstSize
	}

	rl := &PushRateLimiter{
		rate:      config.RequestsPerMinute,
		interval:  time.Minute,
		tokens:    config.BurstSize,
		maxTokens: config.BurstSize,
		now:       time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// Allow takes a token if one is available.
func (rl *PushRateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	if add := int(float64(rl.rate) * elapsed.Seconds() / rl.interval.Seconds()); add > 0 {
		rl.tokens = min(rl.maxTokens, rl.tokens+add)
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// Available returns the number of tokens left.
func (rl *PushRateLimiter) Available() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}
