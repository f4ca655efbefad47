package http

import (
	"net/http"

	auth "github.com/mind-engage/mindengage-classroom/internal/auth/middleware"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

type tokenResp struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func issue(authSvc *auth.AuthService, u user.User) (tokenResp, error) {
	tok, err := authSvc.IssueJWT(u.ID, u.Role)
	return tokenResp{Token: tok, User: u}, err
}

// POST /api/auth/register
func RegisterHandler(users *user.Service, authSvc *auth.AuthService, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.RegisterInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		u, err := users.Register(r.Context(), in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		resp, err := issue(authSvc, u)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusCreated, resp)
	}
}

// POST /api/auth/login
func LoginHandler(users *user.Service, authSvc *auth.AuthService, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.LoginInput
		if err := decodeJSON(w, r, &in); err != nil {
			rs.Error(w, r, err)
			return
		}
		u, err := users.Login(r.Context(), in)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		resp, err := issue(authSvc, u)
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, resp)
	}
}

// GET /api/auth/me
func MeHandler(users *user.Service, rs *Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			rs.Error(w, r, err)
			return
		}
		rs.JSON(w, http.StatusOK, u)
	}
}
