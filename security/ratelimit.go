package security

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = 30 * time.Minute
)

// limiterEntry tracks a rate limiter and its last access time.
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-identifier rate limiting using a token bucket per
// identifier (typically a client IP). Idle buckets are dropped periodically
// so the map cannot grow without bound.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry

	rate        int
	burst       int
	logger      *slog.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a new rate limiter allowing requestsPerSecond with
// the given burst per identifier, and starts its background cleanup.
func NewRateLimiter(requestsPerSecond, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		limiters:    make(map[string]*limiterEntry),
		rate:        requestsPerSecond,
		burst:       burst,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Allow checks if a request from the given identifier is allowed.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[identifier]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rate), rl.burst),
		}
		rl.limiters[identifier] = entry
	}
	entry.lastAccess = time.Now()

	return entry.limiter.Allow()
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// ActiveLimiters returns the number of identifiers currently tracked.
func (rl *RateLimiter) ActiveLimiters() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops limiters that have been idle longer than the idle timeout.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-defaultIdleTimeout)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for identifier, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, identifier)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.Debug("Cleaned up idle rate limiters",
			"removed", removed,
			"remaining", len(rl.limiters))
	}
}
