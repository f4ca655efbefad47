package rbac

import (
	"net/http"

	"github.com/mind-engage/mindengage-classroom/internal/common"
)

var defaultChecker = NewChecker(nil)

func deny(w http.ResponseWriter, r *http.Request) {
	if RoleFromContext(r.Context()) == "" {
		common.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	common.RespondWithError(w, http.StatusForbidden, "forbidden")
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Has(role, perm) {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Any(role, perms...) {
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
