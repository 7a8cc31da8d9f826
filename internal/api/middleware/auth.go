package middleware

import (
	"context"
	"net/http"

	"bildung/internal/app/service"
	"bildung/internal/common"
	"bildung/internal/common/security"
	"bildung/internal/domain/model"
)

type contextKey string

const principalCtxKey contextKey = "principal"

// Authenticator resolves the principal from the session cookie once per
// request and threads it through the request context. Requests without a
// valid, unexpired session are rejected.
func Authenticator(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := security.ReadSessionCookie(r)
			if !ok {
				common.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			user, err := authService.ValidateSession(r.Context(), token)
			if err != nil {
				common.RespondWithError(w, common.HTTPStatusFromError(err), "Internal server error")
				return
			}
			if user == nil {
				security.ClearSessionCookie(w)
				common.RespondWithError(w, http.StatusUnauthorized, "Session expired or invalid")
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree to principals holding the role. Roles are
// checked by value; a user may hold several.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := PrincipalFromContext(r.Context())
			if !ok || !user.HasRole(role) {
				common.RespondWithError(w, http.StatusForbidden, string(role)+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the authenticated user set by Authenticator.
func PrincipalFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(principalCtxKey).(*model.User)
	return user, ok
}
