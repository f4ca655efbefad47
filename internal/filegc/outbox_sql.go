package filegc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type SQLOutbox struct{ db *sql.DB }

func NewSQLOutbox(db *sql.DB) *SQLOutbox { return &SQLOutbox{db: db} }

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnqueueTx appends deletions using the caller's transaction so they commit
// or roll back with the record change that orphaned them.
func EnqueueTx(ctx context.Context, ex Execer, reason string, keys ...string) error {
	now := nowUnix()
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO file_deletions (id, file_key, reason, status, attempts, last_error, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,0,'',$5,$6)`,
			uuid.NewString(), k, reason, string(StatusPending), now, now); err != nil {
			return fmt.Errorf("enqueue %s: %w", k, err)
		}
	}
	return nil
}

func (o *SQLOutbox) Enqueue(ctx context.Context, reason string, keys ...string) error {
	return EnqueueTx(ctx, o.db, reason, keys...)
}

func (o *SQLOutbox) Pending(ctx context.Context, limit int) ([]Job, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, file_key, reason, status, attempts, last_error, created_at, updated_at
		   FROM file_deletions WHERE status = $1 ORDER BY created_at, id LIMIT $2`,
		string(StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		var j Job
		var st string
		if err := rows.Scan(&j.ID, &j.Key, &j.Reason, &st, &j.Attempts, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Status = Status(st)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (o *SQLOutbox) MarkDone(ctx context.Context, id string) error {
	_, err := o.db.ExecContext(ctx,
		`UPDATE file_deletions SET status=$1, updated_at=$2 WHERE id=$3`,
		string(StatusDone), nowUnix(), id)
	return err
}

func (o *SQLOutbox) MarkFailed(ctx context.Context, id string, cause error, giveUp bool) error {
	st := StatusPending
	if giveUp {
		st = StatusFailed
	}
	_, err := o.db.ExecContext(ctx,
		`UPDATE file_deletions SET status=$1, attempts=attempts+1, last_error=$2, updated_at=$3 WHERE id=$4`,
		string(st), cause.Error(), nowUnix(), id)
	return err
}
