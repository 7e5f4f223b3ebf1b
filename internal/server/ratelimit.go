package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"resumegate/internal/errors"

	"golang.org/x/time/rate"
)

// defaultIdleWindow applies when no window is configured
const defaultIdleWindow = 10 * time.Minute

// clientBucket is one client's token bucket and when it was last used
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out a token bucket per client key. Buckets idle for
// longer than the window are evicted by a background sweep.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*clientBucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	logger  *errors.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// RateLimitStats is the limiter state reported by /stats
type RateLimitStats struct {
	Enabled        bool    `json:"enabled"`
	ActiveClients  int     `json:"active_limiters"`
	RatePerSecond  float64 `json:"rate_per_second"`
	RatePerMinute  float64 `json:"rate_per_minute"`
	BurstCapacity  int     `json:"burst_capacity"`
	IdleWindow     string  `json:"idle_window"`
	RetryAfterSecs int     `json:"retry_after_seconds"`
}

// NewRateLimiter allows requestsPerMin per client with the given burst.
// A client's bucket is forgotten after window without requests.
func NewRateLimiter(requestsPerMin int, window time.Duration, burst int, logger *errors.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if window <= 0 {
		window = defaultIdleWindow
	}

	rl := &RateLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   burst,
		idle:    window,
		now:     time.Now,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow takes a token from key's bucket, creating the bucket on first use
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// RetryAfter is how long a throttled client waits for its next token
func (rl *RateLimiter) RetryAfter() time.Duration {
	if rl.limit <= 0 {
		return rl.idle
	}
	return time.Duration(math.Ceil(1/float64(rl.limit))) * time.Second
}

// Stats reports the limiter configuration and the number of tracked clients.
// A nil limiter reports itself as disabled.
func (rl *RateLimiter) Stats() RateLimitStats {
	if rl == nil {
		return RateLimitStats{}
	}
	rl.mu.Lock()
	active := len(rl.buckets)
	rl.mu.Unlock()

	return RateLimitStats{
		Enabled:        true,
		ActiveClients:  active,
		RatePerSecond:  float64(rl.limit),
		RatePerMinute:  float64(rl.limit) * 60,
		BurstCapacity:  rl.burst,
		IdleWindow:     rl.idle.String(),
		RetryAfterSecs: int(rl.RetryAfter() / time.Second),
	}
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(rl.idle)
		case <-rl.done:
			return
		}
	}
}

// evictIdle drops buckets unused for longer than maxIdle
func (rl *RateLimiter) evictIdle(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	evicted := 0
	for key, b := range rl.buckets {
		if !b.lastSeen.After(cutoff) {
			delete(rl.buckets, key)
			evicted++
		}
	}

	if rl.logger != nil && evicted > 0 {
		rl.logger.Debug("Evicted idle rate limit buckets",
			"evicted", evicted, "remaining", len(rl.buckets))
	}
}

// Close stops the background sweep. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// rateLimitMiddleware throttles requests per client. onLimited answers
// requests that exceeded their budget after Retry-After is set.
func (s *Server) rateLimitMiddleware(onLimited http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByIP)
			if key == "" || s.RateLimiter.Allow(key) {
				next(w, r)
				return
			}

			s.Logger.Info("Rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(s.RateLimiter.RetryAfter()/time.Second)))
			onLimited(w, r)
		}
	}
}

// getRateLimitKey returns the bucket key for r, or "" when r is not limited
func getRateLimitKey(r *http.Request, byIP bool) string {
	if !byIP {
		return ""
	}
	return "ip:" + getClientIP(r)
}

// getClientIP prefers proxy headers, then the connection's remote address
func getClientIP(r *http.Request) string {
	if ip := parseFirstIP(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if ip := parseFirstIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP returns the first valid address in a comma-separated list
func parseFirstIP(list string) string {
	for candidate := range strings.SplitSeq(list, ",") {
		candidate = strings.TrimSpace(candidate)
		if net.ParseIP(candidate) != nil {
			return candidate
		}
	}
	return ""
}
