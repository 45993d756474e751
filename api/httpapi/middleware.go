package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-API-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list. Preflight requests and the
// listed open paths pass through so health checks and browsers work without a key.
func withAPIKeyAuth(next http.Handler, apiKeys []string, openPaths ...string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	open := make(map[string]struct{}, len(openPaths))
	for _, p := range openPaths {
		open[p] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := open[r.URL.Path]; ok || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm, burst int, cleanup time.Duration) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	if cleanup > 0 {
		limiter.cleanup = cleanup
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimiter keeps one token bucket per client key.
type rateLimiter struct {
	limit     rate.Limit
	burst     int
	cleanup   time.Duration
	now       func() time.Time
	mu        sync.Mutex
	b         map[string]*rate.Limiter
	lastSweep time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		limit:   rate.Limit(float64(rpm) / 60),
		burst:   burst,
		cleanup: time.Minute,
		now:     time.Now,
		b:       make(map[string]*rate.Limiter),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cleanup {
		l.sweep(now)
		l.lastSweep = now
	}

	lim, ok := l.b[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.b[key] = lim
	}
	return lim.AllowN(now, 1)
}

// sweep drops buckets that have refilled completely; they are
// indistinguishable from a fresh client.
func (l *rateLimiter) sweep(now time.Time) {
	for k, lim := range l.b {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.b, k)
		}
	}
}
