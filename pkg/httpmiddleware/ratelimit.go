package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window and key.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. It defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// counter approximates a sliding window from the counts of the current and
// the previous fixed window.
type counter struct {
	start     time.Time
	current   float64
	previous  float64
	lastStart time.Time
}

type limiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	return &limiter{cfg: cfg, counters: make(map[string]*counter)}
}

// take consumes one request for key. It reports how many requests remain,
// when the current window ends, and whether the request may proceed.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.cfg.Window
	c := l.counters[key]
	if c == nil {
		c = &counter{start: now}
		l.counters[key] = c
	}
	if now.Sub(c.start) >= window {
		c.previous, c.lastStart = c.current, c.start
		c.current = 0
		c.start = now.Truncate(window)
		if now.Sub(c.lastStart) >= 2*window {
			c.previous = 0
		}
	}

	weight := math.Max(0, 1-now.Sub(c.start).Seconds()/window.Seconds())
	used := c.previous*weight + c.current
	reset = c.start.Add(window)
	if used >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	c.current++
	return max(0, int(float64(l.cfg.Max)-used-1)), reset, true
}

// evict drops counters idle for two windows.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

// RateLimit limits requests per client with a sliding window. Rejected
// requests get 429 and {"error":"Too many requests. Please slow down."}.
// Every response carries the X-RateLimit-* headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background sweep of idle clients
// that runs until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.evict(now)
			}
		}
	}()
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(0, time.Until(reset))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
