package middleware

import (
	"net/http"
	"time"

	"github.com/kart-io/clawprobe/pkg/logger"
)

// RequestObserver receives the outcome of every request
type RequestObserver func(r *http.Request, status int, duration time.Duration)

// LoggingMiddleware provides request logging for HTTP transport
type LoggingMiddleware struct {
	logger    logger.Logger
	observers []RequestObserver
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(log logger.Logger, observers ...RequestObserver) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:    logger.OrDiscard(log),
		observers: observers,
	}
}

// Middleware returns the HTTP middleware function
func (l *LoggingMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		for _, observe := range l.observers {
			observe(r, wrapper.statusCode, duration)
		}

		l.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration_ms", duration.Milliseconds(),
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
