package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

// RoleLookup resolves the current role of an account.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (rbac.Role, error)
}

// AttachRoleFromDB replaces the token's role claim with the stored role so
// that role changes and account removal take effect before the token expires.
func AttachRoleFromDB(users RoleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := rbac.SubjectFromContext(ctx)
			role, err := users.RoleOf(ctx, sub)
			switch {
			case err == nil && role.Valid():
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case err == nil, errors.Is(err, common.ErrNotFound):
				common.RespondWithError(w, http.StatusUnauthorized, "account no longer exists")
			default:
				common.RespondWithError(w, http.StatusInternalServerError, "could not resolve account")
			}
		})
	}
}
