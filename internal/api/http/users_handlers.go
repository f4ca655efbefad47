package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// GET /api/users?role=student
func ListUsersHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.Role(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
		list, err := users.List(r.Context(), role)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		if list == nil {
			list = []user.User{}
		}
		rs.JSON(w, http.StatusOK, list)
	}
}

// POST /api/users
func CreateStaffHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.StaffInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		u, err := users.CreateStaff(r.Context(), in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, u)
	}
}

type updateUserRoleReq struct {
	Role rbac.Role `json:"role"`
}

// PUT /api/users/{userID}/role
func UpdateUserRoleHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateUserRoleReq
		if err := decodeJSON(w, r, &req); err != nil {
			rs.Error(w, r, err)
			return
		}
		role := rbac.Role(strings.ToLower(strings.TrimSpace(string(req.Role))))
		u, err := users.UpdateRole(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "userID"), role)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, u)
	}
}

type studentTypeReq struct {
	StudentType user.StudentType `json:"studentType"`
}

// PUT /api/users/{userID}/student-type
func SetStudentTypeHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req studentTypeReq
		if err := decodeJSON(w, r, &req); err != nil {
			rs.Error(w, r, err)
			return
		}
		u, err := users.SetStudentType(r.Context(), chi.URLParam(r, "userID"), req.StudentType)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, u)
	}
}

// POST /api/users/change-password
func ChangePasswordHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.ChangePasswordInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		if err := users.ChangePassword(r.Context(), rbac.SubjectFromContext(r.Context()), in); err != nil {
			rs.Error(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
