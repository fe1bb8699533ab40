package middleware

import (
	"context"
	"net/http"

	"github.com/rhenando/maxsmile/internal/auth"
	"github.com/rhenando/maxsmile/internal/transport"
)

// AdminScope carries the identity and branch of the authenticated
// admin. Every admin request operates within exactly one branch;
// handlers never read a branch from query parameters or bodies.
type AdminScope struct {
	UserID string
	Branch string
}

type adminScopeKey struct{}

// AdminAuth authenticates admin requests from the access-token cookie
// and injects the resulting AdminScope into the request context.
// Tokens without the admin role or without a branch are rejected.
func AdminAuth(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "admin auth not configured", nil)
				return
			}

			cookie, err := r.Cookie(auth.AccessCookieName)
			if err != nil || cookie.Value == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			claims, err := manager.Parse(cookie.Value)
			if err != nil || claims.Role != "admin" || claims.Branch == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			scope := AdminScope{UserID: claims.Subject, Branch: claims.Branch}
			ctx := context.WithValue(r.Context(), adminScopeKey{}, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ScopeFromContext(ctx context.Context) (AdminScope, bool) {
	scope, ok := ctx.Value(adminScopeKey{}).(AdminScope)
	return scope, ok
}
