package user

import (
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

type StudentType string

const (
	StudentPhysical StudentType = "Physical"
	StudentOnline   StudentType = "Online"
)

func (t StudentType) Valid() bool { return t == StudentPhysical || t == StudentOnline }

type User struct {
	ID           string      `json:"id" bson:"_id"`
	Name         string      `json:"name" bson:"name"`
	Username     string      `json:"username" bson:"username"`
	Email        string      `json:"email" bson:"email"`
	PasswordHash string      `json:"-" bson:"passwordHash"`
	Role         rbac.Role   `json:"role" bson:"role"`
	StudentType  StudentType `json:"studentType,omitempty" bson:"studentType,omitempty"`
	CreatedAt    time.Time   `json:"createdAt" bson:"createdAt"`
}

var (
	ErrDuplicate = common.NewError(common.ErrConflict, "username or email is already in use")
	ErrLastAdmin = common.NewError(common.ErrConflict, "cannot change the role of the last admin")
)
