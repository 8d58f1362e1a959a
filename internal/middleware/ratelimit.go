package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/mardaloop/bakery-backend/internal/ratelimit"
	"github.com/mardaloop/bakery-backend/pkg/logger"
)

// RateLimiter rejects requests from clients that exhausted their fixed
// window allowance. It wraps the admission gate so HTTP traffic and the
// order pipeline share one counter per client.
type RateLimiter struct {
	gate       *ratelimit.Gate
	logger     *logger.Logger
	skipPaths  map[string]bool
	trustProxy bool
}

// NewRateLimiter creates the per-client rate limiting middleware. Paths in
// skipPaths are not counted here; the order endpoint is skipped because the
// admission pipeline itself runs the gate as its first stage. trustProxy
// controls whether X-Forwarded-For is honored when deriving the client
// identity.
func NewRateLimiter(gate *ratelimit.Gate, log *logger.Logger, skipPaths []string, trustProxy bool) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &RateLimiter{gate: gate, logger: log, skipPaths: skip, trustProxy: trustProxy}
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		key := ClientIP(r, rl.trustProxy)
		if err := rl.gate.Allow(r.Context(), key); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				rl.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
					"client": key,
					"path":   r.URL.Path,
				}).Warn("rate limit exceeded")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Rate limit exceeded. Try again in a minute."}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GlobalLimiter caps the aggregate request rate of the whole process,
// independent of per-client admission. It protects the backend when traffic
// is spread across many client addresses.
func GlobalLimiter(requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "server busy", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the caller's address used as the rate limit identity.
// X-Forwarded-For is honored only when trustProxy is set: a directly
// connected client could otherwise pick a fresh identity per request.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if first, _, ok := strings.Cut(fwd, ","); ok {
				return strings.TrimSpace(first)
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
