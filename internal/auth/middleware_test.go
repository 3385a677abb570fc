package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farspoke/chat-relay/internal/config"
)

func configWith(secret string) func() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Auth.SharedSecret = secret
	return func() *config.Config { return cfg }
}

func TestMiddlewareOpenMode(t *testing.T) {
	called := false
	handler := Middleware(configWith(""), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/chat", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("open mode should pass requests through without a secret header")
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong value", "not-the-secret"},
		{"wrong length", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Middleware(configWith("the-real-secret"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("POST", "/api/chat", nil)
			if tt.header != "" {
				req.Header.Set(SecretHeader, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called {
				t.Error("handler should not be reached on auth failure")
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestMiddlewareAccepts(t *testing.T) {
	called := false
	handler := Middleware(configWith("the-real-secret"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/chat", nil)
	req.Header.Set(SecretHeader, "the-real-secret")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("matching secret should pass")
	}
}
