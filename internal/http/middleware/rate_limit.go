package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voyago/flight-bookings/internal/http/response"
)

// RateLimitConfig sizes a limiter. KeyFunc defaults to the client IP;
// SkipFunc, when set, exempts matching requests entirely.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
	SkipFunc func(r *http.Request) bool
}

// RateLimiter is a fixed-window per-key counter held in process memory.
// It is a coarse abuse guard, not a correctness mechanism: in a
// multi-instance deployment each instance counts independently.
type RateLimiter struct {
	config RateLimitConfig

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	startAt time.Time
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	return &RateLimiter{
		config:  config,
		windows: make(map[string]*window),
	}
}

// Allow counts one request against key and reports whether it is within
// the cap. The window resets lazily on expiry.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || now.Sub(w.startAt) >= rl.config.Window {
		rl.windows[key] = &window{count: 1, startAt: now}
		return rl.config.Requests >= 1
	}

	w.count++
	return w.count <= rl.config.Requests
}

// Middleware rejects over-limit requests with 429 before they reach
// the handler.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.config.SkipFunc != nil && rl.config.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.Allow(rl.config.KeyFunc(r)) {
				response.RateLimit(w, "Too many requests. Try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPKeyFunc keys the limiter by the real client IP.
func ClientIPKeyFunc(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the socket address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
