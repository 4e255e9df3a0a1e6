package assistant

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles turns per user. The key is the user id only so
// clients cannot bypass throttling by rotating conversation or session ids.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

// NewRateLimiter allows perMinute requests per user with the given burst and
// starts the background eviction goroutine. Call Stop to end it.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	rl := newRateLimiter(perMinute, burst)
	go rl.evictLoop()
	return rl
}

func newRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     limiterIdleTTL,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Allow reports whether key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Stop ends the eviction goroutine.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle drops limiters that have not been used within the idle TTL,
// keeping the map bounded by recently active users.
func (r *RateLimiter) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

func (r *RateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
