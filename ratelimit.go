package auth

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// DefaultLimiterTTL is how long an idle client bucket is kept
const DefaultLimiterTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*limBucket
}

type limBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond events per key with the given burst.
// A non positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int, ttl time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = DefaultLimiterTTL
	}

	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}

	return &RateLimiter{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*limBucket),
	}
}

// Allow reports whether key may proceed now
func (m *RateLimiter) Allow(key string) bool {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.entries[key]
	if b == nil {
		b = &limBucket{lim: rate.NewLimiter(m.limit, m.burst), lastSeen: now}
		m.entries[key] = b
	}
	b.lastSeen = now

	for k, v := range m.entries {
		if now.Sub(v.lastSeen) > m.ttl {
			delete(m.entries, k)
		}
	}
	return b.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys
func (m *RateLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Handler limits requests per client IP, rejecting with ErrTooManyRequests
func (m *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Allow(c.IP()) {
			c.Set(fiber.HeaderRetryAfter, "1")
			return ErrTooManyRequests
		}
		return c.Next()
	}
}
