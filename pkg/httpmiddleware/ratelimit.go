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

// RateLimitConfig bounds how many requests one client may make per window.
// A zero Max disables limiting.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// Key identifies the client. ClientIP is used when nil.
	Key func(*http.Request) string
}

// counter approximates a sliding window from the current fixed window and
// a weighted share of the previous one.
type counter struct {
	start      time.Time
	prev, curr float64
}

type limiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*counter
}

func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := now.Truncate(l.window)
	c, found := l.counters[key]
	switch {
	case !found:
		c = &counter{start: start}
		l.counters[key] = c
	case start.Sub(c.start) == l.window:
		c.start, c.prev, c.curr = start, c.curr, 0
	case start.After(c.start):
		c.start, c.prev, c.curr = start, 0, 0
	}

	reset = c.start.Add(l.window)
	weight := 1 - float64(now.Sub(c.start))/float64(l.window)
	used := c.prev*weight + c.curr
	if used >= float64(l.max) {
		return 0, reset, false
	}
	c.curr++
	return max(0, int(float64(l.max)-used-1)), reset, true
}

// sweep drops counters that no longer influence any decision.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.counters, key)
		}
	}
}

// RateLimit rejects clients over the limit with 429 and a Retry-After
// header. Stale counters are swept until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	key := cfg.Key
	if key == nil {
		key = ClientIP
	}
	l := &limiter{max: cfg.Max, window: cfg.Window, counters: make(map[string]*counter)}

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, reset, ok := l.take(key(r), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := math.Ceil(reset.Sub(now).Seconds())
				h.Set("Retry-After", strconv.Itoa(int(max(wait, 1))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
