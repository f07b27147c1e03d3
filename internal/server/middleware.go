package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autocomplete/internal/config"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}

// authorize checks the optional AUTOCOMPLETE_API_TOKEN. Accepts
// Authorization: Bearer <token> or ?token=.
func authorize(w http.ResponseWriter, r *http.Request) bool {
	tok := os.Getenv("AUTOCOMPLETE_API_TOKEN")
	if tok == "" {
		return true
	}
	hdr := r.Header.Get("Authorization")
	if strings.HasPrefix(hdr, "Bearer ") && strings.TrimSpace(hdr[len("Bearer "):]) == tok {
		return true
	}
	if r.URL.Query().Get("token") == tok {
		return true
	}
	writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	nbytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.nbytes += n
	return n, err
}

func newRequestID() string { return uuid.NewString() }

// clientIP extracts the best-effort client IP from headers or RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		return host[:i]
	}
	return host
}

// normalizePath collapses channel names for metric and limiter labels.
func normalizePath(p string) string {
	if rest, ok := strings.CutPrefix(p, "/channel/"); ok {
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/channel/:name" + rest[i:]
		}
		return "/channel/:name"
	}
	if strings.HasPrefix(p, "/records/") {
		return "/records/:id"
	}
	return p
}

func (a *API) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = newRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		dur := time.Since(start)
		a.lg.Info("http.req",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"userAgent", r.UserAgent(),
			"remoteIP", clientIP(r),
			"status", rec.status,
			"duration_ms", int(dur/time.Millisecond),
			"bytes", rec.nbytes,
		)
		a.metrics.observe(r.Method, normalizePath(r.URL.Path), rec.status, dur)
	})
}

// rateLimiter provides simple token-bucket rate limiting by key.
type rateLimiter struct {
	mu      sync.Mutex
	rps     float64
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rps float64) *rateLimiter {
	return &rateLimiter{rps: rps, buckets: make(map[string]*bucket)}
}

// allow reports whether a request with key may proceed and, if not, the
// seconds until the next token.
func (rl *rateLimiter) allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.rps <= 0 {
		return true, 0
	}
	b := rl.buckets[key]
	now := time.Now()
	if b == nil {
		b = &bucket{tokens: rl.rps, last: now}
		rl.buckets[key] = b
	}
	b.tokens = min(b.tokens+now.Sub(b.last).Seconds()*rl.rps, rl.rps)
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := int((1-b.tokens)/rl.rps + 0.999)
	if wait < 1 {
		wait = 1
	}
	return false, wait
}

type limitScope struct {
	limiter *rateLimiter
	key     func(*http.Request) string
}

// limitsFromEnv reads AUTOCOMPLETE_RATE_LIMIT_RPS and the per-scope
// overrides AUTOCOMPLETE_RATE_LIMIT_{GLOBAL,PATH,IP}_RPS.
func limitsFromEnv() []limitScope {
	base := config.Float("AUTOCOMPLETE_RATE_LIMIT_RPS", 0)
	rps := func(key string) float64 {
		if v := config.Float(key, -1); v >= 0 {
			return v
		}
		return base
	}
	all := []limitScope{
		{newRateLimiter(rps("AUTOCOMPLETE_RATE_LIMIT_GLOBAL_RPS")), func(*http.Request) string { return "global" }},
		{newRateLimiter(rps("AUTOCOMPLETE_RATE_LIMIT_PATH_RPS")), func(r *http.Request) string { return "path:" + r.URL.Path }},
		{newRateLimiter(rps("AUTOCOMPLETE_RATE_LIMIT_IP_RPS")), func(r *http.Request) string { return "ip:" + clientIP(r) }},
	}
	var out []limitScope
	for _, s := range all {
		if s.limiter.rps > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, s := range a.limits {
			if ok, wait := s.limiter.allow(s.key(r)); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(wait))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
