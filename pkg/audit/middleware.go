package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/hdcn/ledenportaal/pkg/contextkeys"
)

// Middleware injects the audit logger into every request context and
// records HTTP-level events for mutations, denials and sensitive reads.
type Middleware struct {
	logger         Logger
	logAllRequests bool
}

// NewMiddleware creates a new audit middleware. With logAllRequests set,
// every request produces an event; otherwise only mutations, errors and
// sensitive endpoints do.
func NewMiddleware(logger Logger, logAllRequests bool) *Middleware {
	return &Middleware{
		logger:         logger,
		logAllRequests: logAllRequests,
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps an HTTP handler with audit logging
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ctx := WithLogger(r.Context(), m.logger)
		ctx = contextkeys.WithRequestStartTime(ctx, startTime)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		if m.logAllRequests || m.shouldLogRequest(r, wrapped.statusCode) {
			event := newBaseEvent(ctx, r, EventTypeHTTPRequest, statusFor(wrapped.statusCode))
			event.StatusCode = wrapped.statusCode
			event.Metadata = map[string]interface{}{
				"duration_ms": time.Since(startTime).Milliseconds(),
			}
			// Sink failures never fail the request.
			_ = m.logger.Log(ctx, event)
		}
	})
}

// statusFor maps an HTTP status code to an event status
func statusFor(statusCode int) EventStatus {
	switch {
	case statusCode == http.StatusForbidden:
		return EventStatusDenied
	case statusCode >= 400:
		return EventStatusFailure
	default:
		return EventStatusSuccess
	}
}

// shouldLogRequest determines if a request should be logged
func (m *Middleware) shouldLogRequest(r *http.Request, statusCode int) bool {
	// Always log mutations
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}

	// Always log errors and denials
	if statusCode >= 400 {
		return true
	}

	return isSensitiveEndpoint(r.URL.Path)
}

// isSensitiveEndpoint reports whether reads of the path are worth a
// trail entry even when they succeed.
func isSensitiveEndpoint(path string) bool {
	for _, prefix := range []string{
		"/api/v1/authz",
		"/api/v1/exports",
		"/api/v1/parameters",
	} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
