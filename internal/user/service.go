package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
	"github.com/mind-engage/mindengage-classroom/internal/validation"
)

const defaultCost = 12

var errBadCredentials = common.NewError(common.ErrUnauthorized, "invalid username/email or password")

type Service struct {
	store Store
	log   logrus.FieldLogger
	cost  int
	now   func() time.Time
}

func NewService(store Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log.WithField("component", "user"), cost: defaultCost, now: time.Now}
}

type RegisterInput struct {
	Name        string      `json:"name" validate:"notblank,max=100"`
	Username    string      `json:"username" validate:"notblank,min=3,max=50,excludesall=@"`
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=8,max=72"`
	StudentType StudentType `json:"studentType" validate:"omitempty,oneof=Physical Online"`
}

// StaffInput creates an account with an explicit role.
type StaffInput struct {
	RegisterInput
	Role rbac.Role `json:"role" validate:"required,role"`
}

func (s *Service) create(ctx context.Context, in RegisterInput, role rbac.Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if role == rbac.RoleStudent {
		u.StudentType = in.StudentType
		if u.StudentType == "" {
			u.StudentType = StudentOnline
		}
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("user created")
	return u, nil
}

// Register creates a student account; the role is never caller-chosen.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}
	return s.create(ctx, in, rbac.RoleStudent)
}

func (s *Service) CreateStaff(ctx context.Context, in StaffInput) (User, error) {
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}
	return s.create(ctx, in.RegisterInput, in.Role)
}

type LoginInput struct {
	Login    string `json:"login" validate:"notblank"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) Login(ctx context.Context, in LoginInput) (User, error) {
	if err := validation.Struct(in); err != nil {
		return User{}, err
	}
	u, err := s.store.GetByLogin(ctx, strings.TrimSpace(in.Login))
	if errors.Is(err, common.ErrNotFound) {
		return User{}, errBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return User{}, errBadCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	u, err := s.store.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return User{}, common.NewError(common.ErrNotFound, "user not found")
	}
	return u, err
}

// RoleOf backs the auth middleware that refreshes roles per request.
func (s *Service) RoleOf(ctx context.Context, id string) (rbac.Role, error) {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (s *Service) List(ctx context.Context, role rbac.Role) ([]User, error) {
	if role != "" && !role.Valid() {
		return nil, common.NewError(common.ErrBadRequest, "unknown role %q", role)
	}
	return s.store.List(ctx, role)
}

// GetMany returns users keyed by id; unknown ids are skipped.
func (s *Service) GetMany(ctx context.Context, ids []string) (map[string]User, error) {
	us, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]User, len(us))
	for _, u := range us {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Service) UpdateRole(ctx context.Context, by, id string, role rbac.Role) (User, error) {
	if !role.Valid() {
		return User{}, common.NewValidationError("role must be a known role")
	}
	if err := s.store.SetRole(ctx, id, role); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return User{}, common.NewError(common.ErrNotFound, "user not found")
		}
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "role": role, "by": by}).Info("role changed")
	return s.Get(ctx, id)
}

func (s *Service) SetStudentType(ctx context.Context, id string, t StudentType) (User, error) {
	if !t.Valid() {
		return User{}, common.NewValidationError("studentType must be Physical or Online")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role != rbac.RoleStudent {
		return User{}, common.NewError(common.ErrBadRequest, "only students have a student type")
	}
	if err := s.store.SetStudentType(ctx, id, t); err != nil {
		return User{}, err
	}
	u.StudentType = t
	return u, nil
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72,nefield=OldPassword"`
}

func (s *Service) ChangePassword(ctx context.Context, id string, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.OldPassword)) != nil {
		return common.NewError(common.ErrForbidden, "incorrect old password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return err
	}
	return s.store.SetPasswordHash(ctx, id, string(hash))
}

// BootstrapAdmin creates an admin from configured credentials when the
// system has none. Empty credentials are a no-op.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := s.store.CountByRole(ctx, rbac.RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	username := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		username = email[:i]
	}
	_, err = s.create(ctx, RegisterInput{Name: "Administrator", Username: username, Email: email, Password: password}, rbac.RoleAdmin)
	if errors.Is(err, ErrDuplicate) {
		return common.NewError(common.ErrConflict, "bootstrap admin %s clashes with an existing user", email)
	}
	return err
}
