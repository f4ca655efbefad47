package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-classroom/internal/material"
	"github.com/mind-engage/mindengage-classroom/internal/paper"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/user"
)

// caller is the authenticated account behind a request. physical is only
// looked up for students.
type caller struct {
	id       string
	role     rbac.Role
	physical bool
}

func resolveCaller(r *http.Request, users *user.Service) (caller, error) {
	ctx := r.Context()
	c := caller{id: rbac.SubjectFromContext(ctx), role: rbac.RoleFromContext(ctx)}
	if c.role != rbac.RoleStudent {
		return c, nil
	}
	u, err := users.Get(ctx, c.id)
	if err != nil {
		return caller{}, err
	}
	c.physical = u.StudentType == user.StudentPhysical
	return c, nil
}

func (c caller) paper() paper.Viewer {
	return paper.Viewer{ID: c.id, Role: c.role, Physical: c.physical}
}

func (c caller) material() material.Viewer {
	return material.Viewer{ID: c.id, Role: c.role, Physical: c.physical}
}

// tokenCaller reads the caller from the token alone, for operations that
// never look at the student type.
func tokenCaller(r *http.Request) caller {
	return caller{id: rbac.SubjectFromContext(r.Context()), role: rbac.RoleFromContext(r.Context())}
}
