package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware_RejectsMissingSecret(t *testing.T) {
	called := false
	handler := NewMiddleware("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/usage", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
	if called {
		t.Errorf("Expected inner handler to be unreachable")
	}
	if !strings.Contains(w.Body.String(), "unauthorized") {
		t.Errorf("Expected unauthorized error kind, got %s", w.Body.String())
	}
}

func TestMiddleware_RejectsWrongSecret(t *testing.T) {
	handler := NewMiddleware("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should be unreachable")
	}))

	req := httptest.NewRequest("GET", "/usage", nil)
	req.Header.Set(SecretHeader, "wrong")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestMiddleware_AcceptsCorrectSecretAndSetsRequestID(t *testing.T) {
	var gotRequestID string
	handler := NewMiddleware("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/usage", nil)
	req.Header.Set(SecretHeader, "s3cret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if gotRequestID == "" {
		t.Errorf("Expected request ID in context")
	}
	if w.Header().Get("X-Request-ID") != gotRequestID {
		t.Errorf("Expected X-Request-ID header to match context value")
	}
}
