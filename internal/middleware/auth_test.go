package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"framecheck/internal/logger"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware("secret")(ok)

	tests := []struct {
		name   string
		method string
		header string
		code   int
	}{
		{"get is open", http.MethodGet, "", http.StatusTeapot},
		{"post without token", http.MethodPost, "", http.StatusUnauthorized},
		{"post with wrong token", http.MethodPost, "Bearer nope", http.StatusUnauthorized},
		{"post without bearer prefix", http.MethodPost, "secret", http.StatusUnauthorized},
		{"post with token", http.MethodPost, "Bearer secret", http.StatusTeapot},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/api/verify", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.code, rec.Code, tt.name)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	AuthMiddleware("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/verify", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLoggingMiddleware_PassesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	LoggingMiddleware(logger.NewDiscard())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
