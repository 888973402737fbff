package middleware

import (
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Protects the bot and the game API from command spam using a per-user
// token bucket. Repeat offenders are muted for a while.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the refill rate per user.
	RequestsPerMinute int

	// BurstSize is the maximum burst size (tokens in bucket at start).
	BurstSize int

	// CleanupInterval is how often to clean up idle buckets.
	CleanupInterval time.Duration

	// BanDuration is how long to mute users who keep hitting the limit.
	BanDuration time.Duration

	// BanThreshold is the number of violations within five minutes before a mute.
	BanThreshold int

	// WhitelistedUsers are exempt from rate limiting (e.g., admins).
	WhitelistedUsers []int64

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         3,
		CleanupInterval:   5 * time.Minute,
		BanDuration:       10 * time.Minute,
		BanThreshold:      5,
	}
}

// RateLimiter implements per-user rate limiting using the token bucket algorithm.
type RateLimiter struct {
	config    RateLimitConfig
	whitelist map[int64]struct{}
	now       func() time.Time

	mu      sync.Mutex
	buckets map[int64]*tokenBucket
	bans    map[int64]time.Time // user -> ban expiry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// tokenBucket represents a user's rate limit state.
type tokenBucket struct {
	tokens       float64
	lastRefill   time.Time
	violations   int
	lastViolated time.Time
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is allowed.
	Allowed bool

	// RetryAfter is how long the user should wait before retrying.
	RetryAfter time.Duration

	// IsBanned indicates if the user is temporarily muted.
	IsBanned bool

	// Notify is true only for the first rejection in a row, so a spammer
	// does not get one reply per message.
	Notify bool
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop.
// Call Stop to release it.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	rl := &RateLimiter{
		config:    config,
		whitelist: make(map[int64]struct{}, len(config.WhitelistedUsers)),
		now:       config.Now,
		buckets:   make(map[int64]*tokenBucket),
		bans:      make(map[int64]time.Time),
		stopCh:    make(chan struct{}),
	}
	for _, id := range config.WhitelistedUsers {
		rl.whitelist[id] = struct{}{}
	}

	go rl.cleanupLoop()

	return rl
}

// Check consumes a token for the user if one is available.
func (rl *RateLimiter) Check(telegramID int64) RateLimitResult {
	if _, ok := rl.whitelist[telegramID]; ok {
		return RateLimitResult{Allowed: true}
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if expires, ok := rl.bans[telegramID]; ok {
		if now.Before(expires) {
			return RateLimitResult{IsBanned: true, RetryAfter: expires.Sub(now)}
		}
		delete(rl.bans, telegramID)
	}

	bucket, ok := rl.buckets[telegramID]
	if !ok {
		bucket = &tokenBucket{tokens: float64(rl.config.BurstSize), lastRefill: now}
		rl.buckets[telegramID] = bucket
	}

	// Refill tokens based on elapsed time
	refillRate := float64(rl.config.RequestsPerMinute) / 60.0 // tokens per second
	bucket.tokens += now.Sub(bucket.lastRefill).Seconds() * refillRate
	if bucket.tokens > float64(rl.config.BurstSize) {
		bucket.tokens = float64(rl.config.BurstSize)
	}
	bucket.lastRefill = now

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return RateLimitResult{Allowed: true}
	}

	// Reset violations if last violation was more than 5 minutes ago
	if now.Sub(bucket.lastViolated) > 5*time.Minute {
		bucket.violations = 0
	}
	bucket.violations++
	bucket.lastViolated = now

	if rl.config.BanThreshold > 0 && bucket.violations >= rl.config.BanThreshold {
		rl.bans[telegramID] = now.Add(rl.config.BanDuration)
		return RateLimitResult{IsBanned: true, RetryAfter: rl.config.BanDuration}
	}

	deficit := 1.0 - bucket.tokens
	return RateLimitResult{
		RetryAfter: time.Duration(deficit / refillRate * float64(time.Second)),
		Notify:     bucket.violations == 1,
	}
}

// Reset clears the rate limit state of a user.
func (rl *RateLimiter) Reset(telegramID int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, telegramID)
	delete(rl.bans, telegramID)
}

// Stop stops the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// cleanupLoop periodically drops idle buckets and expired bans.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes buckets idle for ten minutes and expired bans.
func (rl *RateLimiter) cleanup() {
	now := rl.now()
	const inactiveThreshold = 10 * time.Minute

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, bucket := range rl.buckets {
		if now.Sub(bucket.lastRefill) > inactiveThreshold {
			delete(rl.buckets, id)
		}
	}
	for id, expires := range rl.bans {
		if !now.Before(expires) {
			delete(rl.bans, id)
		}
	}
}
