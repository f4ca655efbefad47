package paper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
	"github.com/mind-engage/mindengage-classroom/internal/filegc"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(d *sql.DB) *SQLStore {
	return &SQLStore{db: d}
}

type scanner interface {
	Scan(dest ...any) error
}

const paperCols = `id, title, description, teacher_id, course_id, questions_json, deadline, time_limit,
	availability, price, paper_type, file_url, thumbnail_url, total_questions, created_at, updated_at`

func scanPaper(s scanner) (Paper, error) {
	var (
		p                Paper
		qjson            string
		deadline         sql.NullInt64
		avail, ptype     string
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Description, &p.TeacherID, &p.CourseID, &qjson, &deadline, &p.TimeLimit,
		&avail, &p.Price, &ptype, &p.FileURL, &p.ThumbnailURL, &p.TotalQuestions, &created, &updated); err != nil {
		return Paper{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &p.Questions); err != nil {
		return Paper{}, fmt.Errorf("decode questions of %s: %w", p.ID, err)
	}
	if deadline.Valid {
		t := time.Unix(deadline.Int64, 0).UTC()
		p.Deadline = &t
	}
	p.Availability = Availability(avail)
	p.PaperType = PaperType(ptype)
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return p, nil
}

func deadlineArg(p Paper) sql.NullInt64 {
	if p.Deadline == nil {
		return sql.NullInt64{}
	}
	u := p.Deadline.Unix()
	return db.NullUnix(&u)
}

func (s *SQLStore) CreatePaper(ctx context.Context, p Paper) error {
	qj, err := json.Marshal(p.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO papers (`+paperCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.Title, p.Description, p.TeacherID, p.CourseID, string(qj), deadlineArg(p), p.TimeLimit,
		string(p.Availability), p.Price, string(p.PaperType), p.FileURL, p.ThumbnailURL, p.TotalQuestions,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) UpdatePaper(ctx context.Context, p Paper, orphanURLs []string) error {
	qj, err := json.Marshal(p.Questions)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE paper_id=$1`, p.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return &LockedError{Submissions: n}
		}
		res, err := tx.ExecContext(ctx, `UPDATE papers SET title=$1, description=$2, course_id=$3, questions_json=$4,
			deadline=$5, time_limit=$6, availability=$7, price=$8, paper_type=$9, file_url=$10, thumbnail_url=$11,
			total_questions=$12, updated_at=$13 WHERE id=$14`,
			p.Title, p.Description, p.CourseID, string(qj), deadlineArg(p), p.TimeLimit, string(p.Availability),
			p.Price, string(p.PaperType), p.FileURL, p.ThumbnailURL, p.TotalQuestions, p.UpdatedAt.Unix(), p.ID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			return common.ErrNotFound
		}
		return filegc.EnqueueTx(ctx, tx, "paper "+p.ID+" updated", filegc.Keys(orphanURLs...)...)
	})
}

func (s *SQLStore) DeletePaper(ctx context.Context, id string) (Paper, []Attempt, error) {
	var (
		p        Paper
		attempts []Attempt
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		p, err = scanPaper(tx.QueryRowContext(ctx, `SELECT `+paperCols+` FROM papers WHERE id=$1`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		attempts, err = queryAttempts(ctx, tx, `WHERE paper_id=$1`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM attempts WHERE paper_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id=$1`, id); err != nil {
			return err
		}
		urls := p.FileURLs()
		for _, a := range attempts {
			urls = append(urls, a.FileURLs()...)
		}
		return filegc.EnqueueTx(ctx, tx, "paper "+id+" deleted", filegc.Keys(urls...)...)
	})
	if err != nil {
		return Paper{}, nil, err
	}
	return p, attempts, nil
}

func (s *SQLStore) GetPaper(ctx context.Context, id string) (Paper, error) {
	p, err := scanPaper(s.db.QueryRowContext(ctx, `SELECT `+paperCols+` FROM papers WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Paper{}, common.ErrNotFound
	}
	return p, err
}

func (s *SQLStore) ListPapers(ctx context.Context, opts ListOpts) ([]Paper, error) {
	var (
		where []string
		args  []any
	)
	if opts.TeacherID != "" {
		args = append(args, opts.TeacherID)
		where = append(where, fmt.Sprintf("teacher_id=$%d", len(args)))
	}
	if opts.CourseID != "" {
		args = append(args, opts.CourseID)
		where = append(where, fmt.Sprintf("course_id=$%d", len(args)))
	}
	q := `SELECT ` + paperCols + ` FROM papers`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- attempts ----

const attemptCols = `id, paper_id, student_id, answers_json, answer_file_url, score, total_questions, percentage,
	status, time_spent, teacher_review_file_url, graded, submitted_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanAttempt(s scanner) (Attempt, error) {
	var (
		a         Attempt
		ajson     string
		status    string
		graded    int
		submitted int64
	)
	if err := s.Scan(&a.ID, &a.PaperID, &a.StudentID, &ajson, &a.AnswerFileURL, &a.Score, &a.TotalQuestions,
		&a.Percentage, &status, &a.TimeSpent, &a.TeacherReviewFileURL, &graded, &submitted); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("decode answers of %s: %w", a.ID, err)
	}
	a.Status = AttemptStatus(status)
	a.Graded = graded != 0
	a.SubmittedAt = time.Unix(submitted, 0).UTC()
	return a, nil
}

func queryAttempts(ctx context.Context, q querier, where string, args ...any) ([]Attempt, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+attemptCols+` FROM attempts `+where+` ORDER BY submitted_at DESC, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	if a.Answers == nil {
		a.Answers = []Answer{}
	}
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts (`+attemptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.PaperID, a.StudentID, string(aj), a.AnswerFileURL, a.Score, a.TotalQuestions, a.Percentage,
		string(a.Status), a.TimeSpent, a.TeacherReviewFileURL, boolInt(a.Graded), a.SubmittedAt.Unix())
	if db.IsUniqueViolation(err) {
		return ErrAlreadySubmitted
	}
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, common.ErrNotFound
	}
	return a, err
}

func (s *SQLStore) FindAttempt(ctx context.Context, paperID, studentID string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE paper_id=$1 AND student_id=$2`, paperID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, common.ErrNotFound
	}
	return a, err
}

func (s *SQLStore) CountAttempts(ctx context.Context, paperID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE paper_id=$1`, paperID).Scan(&n)
	return n, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, f AttemptFilter) ([]Attempt, error) {
	var (
		where []string
		args  []any
	)
	if f.PaperID != "" {
		args = append(args, f.PaperID)
		where = append(where, fmt.Sprintf("paper_id=$%d", len(args)))
	}
	if f.StudentID != "" {
		args = append(args, f.StudentID)
		where = append(where, fmt.Sprintf("student_id=$%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	return queryAttempts(ctx, s.db, clause, args...)
}

func (s *SQLStore) UpdateMarks(ctx context.Context, attemptID string, score float64, percentage int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET score=$1, percentage=$2, graded=1 WHERE id=$3`,
		score, percentage, attemptID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetReviewFile(ctx context.Context, attemptID, url string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var old string
		err := tx.QueryRowContext(ctx, `SELECT teacher_review_file_url FROM attempts WHERE id=$1`, attemptID).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE attempts SET teacher_review_file_url=$1 WHERE id=$2`, url, attemptID); err != nil {
			return err
		}
		if old == "" || old == url {
			return nil
		}
		return filegc.EnqueueTx(ctx, tx, "review of attempt "+attemptID+" replaced", filegc.Keys(old)...)
	})
}
