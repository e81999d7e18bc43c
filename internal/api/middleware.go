package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"slotting/internal/metrics"
)

// statusWriter captures the final HTTP status code and number of bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

// Record implicit 200 responses when handlers write without calling WriteHeader.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Flush keeps SSE streaming working through the middleware chain.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w}
}

// loggingMiddleware logs request duration and response size.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)
		s.Log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.RequestURI()),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.bytes),
			zap.Int64("durMs", time.Since(start).Milliseconds()),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(status)}
		metrics.HTTPRequests.WithLabelValues(labels...).Inc()
		metrics.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses ids so that metric cardinality stays bounded.
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/v1/instances/")
	if !ok || rest == "" {
		return otherRoute
	}
	parts := strings.Split(rest, "/")
	parts[0] = "{id}"
	if len(parts) == 3 && parts[1] == "solutions" {
		parts[2] = "{solutionId}"
	}
	label := "/v1/instances/" + strings.Join(parts, "/")
	if !instanceRoutes[label] {
		return otherRoute
	}
	return label
}

// otherRoute labels paths no handler serves, keeping label cardinality bounded.
const otherRoute = "other"

var knownRoutes = map[string]bool{
	"/v1/instances": true, "/v1/admin/solver-metrics": true,
	"/healthz":      true, "/readyz": true, "/debug/info": true,
	"/openapi.yaml": true, "/openapi.json": true, "/docs": true, "/metrics": true,
}

var instanceRoutes = map[string]bool{
	"/v1/instances/{id}":                        true,
	"/v1/instances/{id}/summary":                true,
	"/v1/instances/{id}/solve":                  true,
	"/v1/instances/{id}/check":                  true,
	"/v1/instances/{id}/solutions":              true,
	"/v1/instances/{id}/solutions/{solutionId}": true,
	"/v1/instances/{id}/events/stream":          true,
	"/v1/instances/{id}/events/ws":              true,
}

var unlimitedPaths = map[string]bool{"/healthz": true, "/readyz": true, "/metrics": true}

// rateLimitMiddleware applies a global token bucket. RATE_RPS=0 disables it.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.Config.RateRPS <= 0 {
		return next
	}
	burst := s.Config.RateBurst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(s.Config.RateRPS), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !unlimitedPaths[r.URL.Path] && !lim.Allow() {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
