package middleware

import (
	"net/http"

	"citylink/internal/utils"

	"github.com/go-chi/chi/v5"
)

// RequireSelfOrRoles allows if {userId} == ctx user id OR user has any of the given roles.
func RequireSelfOrRoles(roles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxUID, ctxRole, ok := Identity(r.Context())
			if !ok {
				utils.Error(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			// allow admins (or other roles you include)
			if _, ok := roleSet[ctxRole]; ok {
				next.ServeHTTP(w, r)
				return
			}
			// otherwise only self
			if chi.URLParam(r, "userId") == ctxUID {
				next.ServeHTTP(w, r)
				return
			}
			utils.Error(w, http.StatusForbidden, "Access denied")
		})
	}
}
