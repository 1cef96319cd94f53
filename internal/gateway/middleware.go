package gateway

import (
	"context"
	"net/http"
	"time"

	"schooladmin/internal/auth"
	"schooladmin/internal/gateway/util"
	"schooladmin/internal/shared"
)

// AuthMiddleware creates a middleware that validates JWT tokens and injects
// the current user into the request context.
func AuthMiddleware(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			user, err := authService.ValidateToken(ctx, tokenStr)
			if err != nil {
				if shared.IsStorage(err) {
					util.HandleServiceError(w, err)
					return
				}
				util.WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctxWithUser := util.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctxWithUser))
		})
	}
}

// RequireRole gates a route group to the given roles. Superadmins pass every
// gate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles)+1)
	allowed[shared.RoleSuperAdmin] = true
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := util.UserFromContext(r)
			if user == nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !allowed[user.Role] {
				util.WriteJSONError(w, http.StatusForbidden, "Access denied for role "+user.Role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
