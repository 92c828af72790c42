package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdcn/ledenportaal/pkg/contextkeys"
	"github.com/hdcn/ledenportaal/pkg/observability"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("assigns an ID and echoes it", func(t *testing.T) {
		var fromContext string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = contextkeys.GetRequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/members", nil))

		require.NotEmpty(t, fromContext)
		assert.Equal(t, fromContext, w.Header().Get("X-Request-ID"))
	})

	t.Run("honors the gateway's ID", func(t *testing.T) {
		var fromContext string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = contextkeys.GetRequestID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/api/v1/members", nil)
		req.Header.Set("X-Request-ID", "gateway-abc-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "gateway-abc-123", fromContext)
		assert.Equal(t, "gateway-abc-123", w.Header().Get("X-Request-ID"))
	})
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	handler := RequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The handler sees the logger on its context.
		assert.NotNil(t, observability.GetLogger(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/v1/members/9999", nil)
	req = req.WithContext(contextkeys.WithRequestID(req.Context(), "req-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	line := buf.String()
	assert.Contains(t, line, `"msg":"request handled"`)
	assert.Contains(t, line, `"method":"GET"`)
	assert.Contains(t, line, `"path":"/api/v1/members/9999"`)
	assert.Contains(t, line, `"status":404`)
	assert.Contains(t, line, `"request_id":"req-1"`)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", clientIP(req))

	req.Header.Set("X-Real-IP", "192.168.1.5")
	assert.Equal(t, "192.168.1.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
