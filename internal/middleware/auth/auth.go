// Package auth provides the bearer-token HTTP middleware.
package auth

import (
	"context"
	"net/http"

	"babybudget/internal/auth"
	"babybudget/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "" outside authenticated routes.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Middleware rejects requests without a valid bearer token by calling
// onUnauthorized, and otherwise stores the token's user id in the context.
func Middleware(v Verifier, onUnauthorized func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.FromHeader(r.Header.Get("Authorization"))
			if err == nil {
				var claims *auth.Claims
				if claims, err = v.Verify(token); err == nil {
					ctx := WithUserID(r.Context(), claims.GoogleID)
					logger := log.FromContext(ctx).With(log.FieldUserID, claims.GoogleID)
					next.ServeHTTP(w, r.WithContext(log.WithLogger(ctx, logger)))
					return
				}
			}

			log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
				WarnContext(r.Context(), "Authentication failed",
					log.FieldError, err,
					log.FieldErrorType, log.ErrorTypeAuth,
					log.FieldPath, r.URL.Path)
			if onUnauthorized != nil {
				onUnauthorized(w, r, err)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}
