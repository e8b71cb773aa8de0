package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

const rateWindow = time.Minute

type middleware func(http.HandlerFunc) http.HandlerFunc

// chain applies mws so that the first one runs outermost.
func chain(h http.HandlerFunc, mws ...middleware) http.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument records request count and latency under the route name, not
// the raw path, so label cardinality stays bounded.
func instrument(route string) middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next(rec, r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	}
}

// corsMiddleware adds CORS headers and answers preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	origin := s.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// newLimiter builds a per-client sliding window limiter shared by every
// route wrapped with rateLimitMiddleware. Clients are keyed like getClientIP.
func newLimiter(s *Server, perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, rateWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) { return getClientIP(r), nil }),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rateLimitHits.WithLabelValues(r.URL.Path).Inc()
			s.writeErrorResponse(w, "rate limit exceeded", http.StatusTooManyRequests)
		}))
}

// rateLimitMiddleware enforces the per-client request limit when configured.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return s.limiter(next).ServeHTTP
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the peer address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
