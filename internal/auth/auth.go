package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
)

// SecretHeader carries the shared secret on every metering request.
const SecretHeader = "X-API-Secret"

type Middleware func(next http.Handler) http.Handler

type contextKey string

const requestIDKey contextKey = "request_id"

// NewMiddleware gates requests on a shared secret injected at construction.
// The comparison is constant-time and happens before any other work; a
// rejected request never reaches the store. Each accepted request also gets
// a request ID for log correlation.
func NewMiddleware(secret string) Middleware {
	secretBytes := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			provided := []byte(r.Header.Get(SecretHeader))
			if len(provided) == 0 || subtle.ConstantTimeCompare(provided, secretBytes) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"kind":"unauthorized","message":"missing or incorrect API secret"}}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID extracts the request ID assigned by the middleware.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID is a helper for tests.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}
