package user

import (
	"context"

	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

// Store persists users. Username and email are unique; Create returns
// ErrDuplicate on a clash.
type Store interface {
	Create(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	// GetByLogin matches username or email.
	GetByLogin(ctx context.Context, login string) (User, error)
	GetMany(ctx context.Context, ids []string) ([]User, error)
	List(ctx context.Context, role rbac.Role) ([]User, error)
	CountByRole(ctx context.Context, role rbac.Role) (int, error)
	// SetRole refuses with ErrLastAdmin to demote the only admin.
	SetRole(ctx context.Context, id string, role rbac.Role) error
	SetStudentType(ctx context.Context, id string, t StudentType) error
	SetPasswordHash(ctx context.Context, id, hash string) error
}
