package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/notify/logger"
)

// slowRequest marks non-streaming requests worth flagging in logs.
const slowRequest = 500 * time.Millisecond

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Health-check paths are silently skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.code(),
				"bytes":       sw.bytes,
				"duration_ms": duration.Milliseconds(),
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields["request_id"] = id
			}
			if sw.streamed {
				fields["streamed"] = true
			} else if duration > slowRequest {
				fields["slow"] = true
			}
			logByStatus(log, fields, sw.code())
		})
	}
}

func isHealthEndpoint(path string) bool {
	return strings.HasSuffix(path, "/health/live") || strings.HasSuffix(path, "/health/ready")
}

// logByStatus logs request fields at the appropriate level based on HTTP status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
