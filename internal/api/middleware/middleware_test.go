package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/scaffold-api/internal/api/shared"
	"github.com/phrazzld/scaffold-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestTraceMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seenTrace string
	handler := NewTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTrace = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status/abc", nil))

	assert.NotEmpty(t, seenTrace)
	assert.Equal(t, seenTrace, w.Header().Get(TraceIDHeader))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, seenTrace, "every line carries the trace id")
	}
}

func TestTraceMiddleware_NilLogger(t *testing.T) {
	handler := NewTraceMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantVary   bool
	}{
		{"wildcard", []string{"*"}, http.MethodPost, "https://form.example", false, "*", false},
		{"listed origin", []string{"https://form.example"}, http.MethodGet, "https://form.example", false, "https://form.example", true},
		{"unlisted origin", []string{"https://form.example"}, http.MethodGet, "https://evil.example", false, "", true},
		{"no origins configured", nil, http.MethodGet, "https://form.example", false, "", true},
		{"preflight", []string{"*"}, http.MethodOptions, "https://form.example", true, "*", false},
		{"preflight unlisted", []string{"https://form.example"}, http.MethodOptions, "https://evil.example", true, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/generate", nil)
			req.Header.Set("Origin", tc.origin)
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			}
			w := httptest.NewRecorder()

			NewCORSMiddleware(tc.allowed)(ok).ServeHTTP(w, req)

			assert.GreaterOrEqual(t, w.Code, 200)
			assert.Less(t, w.Code, 300)
			assert.Equal(t, tc.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			if tc.wantVary {
				assert.Contains(t, w.Header().Values("Vary"), "Origin")
			}
			if tc.preflight && tc.wantOrigin != "" {
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			}
			if !tc.preflight && tc.wantOrigin != "" {
				exposed := strings.ToLower(w.Header().Get("Access-Control-Expose-Headers"))
				assert.Contains(t, exposed, strings.ToLower(TraceIDHeader))
			}
		})
	}
}
