package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatllm-backend/internal/models"
)

type contextKey string

const UserKey contextKey = "user"

// ErrUnauthenticated is returned by a SessionResolver when the token is
// missing, invalid, expired, or names a user that no longer exists.
var ErrUnauthenticated = errors.New("could not validate credentials")

// SessionResolver turns a bearer token into the acting user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*models.User, error)
}

// Authenticate validates the bearer token and attaches the resolved user to
// the request context. Every authentication failure is reported as the same 401.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeUnauthorized(w, r)
				return
			}

			user, err := resolver.ResolveSession(r.Context(), token)
			if errors.Is(err, ErrUnauthenticated) {
				writeUnauthorized(w, r)
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", r)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetUser extracts the authenticated user from request context
func GetUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials", r)
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get(RequestIDHeader),
		},
	})
}
