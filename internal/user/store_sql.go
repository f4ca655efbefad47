package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/rbac"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(d *sql.DB) *SQLStore { return &SQLStore{db: d} }

const userCols = `id, name, username, email, password_hash, role, student_type, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (User, error) {
	var (
		u        User
		role, st string
		created  int64
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &role, &st, &created); err != nil {
		return User{}, err
	}
	u.Role = rbac.Role(role)
	u.StudentType = StudentType(st)
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func (s *SQLStore) one(ctx context.Context, where string, args ...any) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, common.ErrNotFound
	}
	return u, err
}

func (s *SQLStore) many(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, string(u.Role), string(u.StudentType), u.CreatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	return s.one(ctx, `id=$1`, id)
}

func (s *SQLStore) GetByLogin(ctx context.Context, login string) (User, error) {
	return s.one(ctx, `username=$1 OR email=$2`, login, strings.ToLower(login))
}

func (s *SQLStore) GetMany(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return s.many(ctx, `SELECT `+userCols+` FROM users WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
}

func (s *SQLStore) List(ctx context.Context, role rbac.Role) ([]User, error) {
	if role == "" {
		return s.many(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at DESC, id`)
	}
	return s.many(ctx, `SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY created_at DESC, id`, string(role))
}

func (s *SQLStore) CountByRole(ctx context.Context, role rbac.Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role=$1`, string(role)).Scan(&n)
	return n, err
}

func (s *SQLStore) SetRole(ctx context.Context, id string, role rbac.Role) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var cur string
		err := tx.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		if rbac.Role(cur) == rbac.RoleAdmin && role != rbac.RoleAdmin {
			var admins int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role=$1`, string(rbac.RoleAdmin)).Scan(&admins); err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, string(role), id)
		return err
	})
}

func (s *SQLStore) update(ctx context.Context, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetStudentType(ctx context.Context, id string, t StudentType) error {
	return s.update(ctx, `UPDATE users SET student_type=$1 WHERE id=$2`, string(t), id)
}

func (s *SQLStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.update(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
}
