package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/confirming/marketplace/internal/domain"
)

// Context keys
type contextKey string

const (
	ActorKey     contextKey = "actor"
	RequestIDKey contextKey = "request_id"
	LoggerKey    contextKey = "logger"
)

// TokenValidator resolves a bearer token to the actor it was issued to
type TokenValidator interface {
	ValidateToken(token string) (*domain.Actor, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	tokens TokenValidator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
	}
}

// Authenticate validates the bearer token and stores the actor in the request context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		actor, err := m.tokens.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil || actor == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects actors whose role is not listed
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !slices.Contains(roles, actor.Role) {
				writeError(w, http.StatusForbidden, "Role not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetActor extracts the authenticated actor from context
func GetActor(ctx context.Context) *domain.Actor {
	if actor, ok := ctx.Value(ActorKey).(*domain.Actor); ok {
		return actor
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
