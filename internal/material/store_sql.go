package material

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

const cols = `id, kind, title, description, course_id, file_url, video_url, thumbnail_url, availability, price,
	created_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Material, error) {
	var (
		m                Material
		kind, avail      string
		created, updated int64
	)
	if err := s.Scan(&m.ID, &kind, &m.Title, &m.Description, &m.CourseID, &m.FileURL, &m.VideoURL, &m.ThumbnailURL,
		&avail, &m.Price, &m.CreatedBy, &created, &updated); err != nil {
		return Material{}, err
	}
	m.Kind = Kind(kind)
	m.Availability = Availability(avail)
	m.CreatedAt = time.Unix(created, 0).UTC()
	m.UpdatedAt = time.Unix(updated, 0).UTC()
	return m, nil
}

func (s *SQLStore) Create(ctx context.Context, m Material) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO materials (`+cols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, string(m.Kind), m.Title, m.Description, m.CourseID, m.FileURL, m.VideoURL, m.ThumbnailURL,
		string(m.Availability), m.Price, m.CreatedBy, m.CreatedAt.Unix(), m.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) Get(ctx context.Context, kind Kind, id string) (Material, error) {
	m, err := scan(s.db.QueryRowContext(ctx, `SELECT `+cols+` FROM materials WHERE id=$1 AND kind=$2`, id, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return Material{}, common.ErrNotFound
	}
	return m, err
}

func (s *SQLStore) List(ctx context.Context, kind Kind, courseID string) ([]Material, error) {
	q := `SELECT ` + cols + ` FROM materials WHERE kind=$1`
	args := []any{string(kind)}
	if courseID != "" {
		q += ` AND course_id=$2`
		args = append(args, courseID)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY created_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, m Material, orphanURLs []string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE materials SET title=$1, description=$2, course_id=$3, file_url=$4,
			video_url=$5, thumbnail_url=$6, availability=$7, price=$8, updated_at=$9 WHERE id=$10 AND kind=$11`,
			m.Title, m.Description, m.CourseID, m.FileURL, m.VideoURL, m.ThumbnailURL, string(m.Availability),
			m.Price, m.UpdatedAt.Unix(), m.ID, string(m.Kind))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}
		return filegc.EnqueueTx(ctx, tx, string(m.Kind)+" "+m.ID+" updated", filegc.Keys(orphanURLs...)...)
	})
}

func (s *SQLStore) Delete(ctx context.Context, kind Kind, id string) (Material, error) {
	var m Material
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		m, err = scan(tx.QueryRowContext(ctx, `SELECT `+cols+` FROM materials WHERE id=$1 AND kind=$2`, id, string(kind)))
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM materials WHERE id=$1`, id); err != nil {
			return err
		}
		return filegc.EnqueueTx(ctx, tx, string(kind)+" "+id+" deleted", filegc.Keys(m.FileURLs()...)...)
	})
	return m, err
}
