package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatllm-backend/internal/models"
)

type stubResolver struct {
	users     map[string]*models.User
	lastToken string
}

func (s *stubResolver) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	s.lastToken = token
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	if token == "broken-store" {
		return nil, errors.New("connection refused")
	}
	return nil, ErrUnauthenticated
}

func TestAuthenticate_AttachesUser(t *testing.T) {
	resolver := &stubResolver{users: map[string]*models.User{
		"good-token": {ID: 7, Email: "a@x.com", IsActive: true},
	}}

	var seen *models.User
	h := Authenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if seen == nil || seen.ID != 7 {
		t.Fatalf("expected user 7 in context, got %+v", seen)
	}
	if resolver.lastToken != "good-token" {
		t.Fatalf("expected resolver to receive the bare token, got %q", resolver.lastToken)
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	resolver := &stubResolver{users: map[string]*models.User{}}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := Authenticate(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
			req.Header.Set(RequestIDHeader, "req-1")
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if called {
				t.Fatal("next handler must not run for unauthenticated requests")
			}
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
			}
			if rr.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("expected WWW-Authenticate: Bearer, got %q", rr.Header().Get("WWW-Authenticate"))
			}

			var body models.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Error.Code != "UNAUTHORIZED" || body.Error.RequestID != "req-1" {
				t.Fatalf("unexpected error body: %+v", body.Error)
			}
		})
	}
}

func TestAuthenticate_StoreFailureIsNotUnauthorized(t *testing.T) {
	h := Authenticate(&stubResolver{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("Authorization", "Bearer broken-store")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def")

	token, ok := BearerToken(req)
	if !ok || token != "abc.def" {
		t.Fatalf("expected abc.def, got %q (ok=%v)", token, ok)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated request id to be echoed, got %q / %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "caller-id" || rr.Header().Get(RequestIDHeader) != "caller-id" {
		t.Fatalf("expected caller id to be kept, got %q", seen)
	}
}
