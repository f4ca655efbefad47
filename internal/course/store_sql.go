package course

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(d *sql.DB) *SQLStore { return &SQLStore{db: d} }

const cols = `id, title, slug, description, teacher_id, price, thumbnail_url, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Course, error) {
	var (
		c                Course
		created, updated int64
	)
	if err := s.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.TeacherID, &c.Price, &c.ThumbnailURL, &created, &updated); err != nil {
		return Course{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return c, nil
}

func (s *SQLStore) Create(ctx context.Context, c Course) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (`+cols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Title, c.Slug, c.Description, c.TeacherID, c.Price, c.ThumbnailURL, c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Course, error) {
	c, err := scan(s.db.QueryRowContext(ctx, `SELECT `+cols+` FROM courses WHERE id=$1 OR slug=$2`, id, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, common.ErrNotFound
	}
	return c, err
}

func (s *SQLStore) List(ctx context.Context, teacherID string) ([]Course, error) {
	q := `SELECT ` + cols + ` FROM courses`
	var args []any
	if teacherID != "" {
		q += ` WHERE teacher_id=$1`
		args = append(args, teacherID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, c Course, orphanURLs []string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE courses SET title=$1, description=$2, price=$3, thumbnail_url=$4, updated_at=$5
			WHERE id=$6`, c.Title, c.Description, c.Price, c.ThumbnailURL, c.UpdatedAt.Unix(), c.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}
		return filegc.EnqueueTx(ctx, tx, "course "+c.ID+" updated", filegc.Keys(orphanURLs...)...)
	})
}

func (s *SQLStore) Delete(ctx context.Context, id string) (Course, error) {
	var c Course
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = scan(tx.QueryRowContext(ctx, `SELECT `+cols+` FROM courses WHERE id=$1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id); err != nil {
			return err
		}
		return filegc.EnqueueTx(ctx, tx, "course "+id+" deleted", filegc.Keys(c.ThumbnailURL)...)
	})
	return c, err
}
