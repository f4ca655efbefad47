package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-classroom/internal/common"
	"github.com/mind-engage/mindengage-classroom/internal/db"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(d *sql.DB) *SQLStore { return &SQLStore{db: d} }

const cols = `id, user_id, item_id, item_model, amount, currency, order_id, status, metadata_json, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Payment, error) {
	var (
		p                   Payment
		model, status, meta string
		created, updated    int64
	)
	if err := s.Scan(&p.ID, &p.UserID, &p.ItemID, &model, &p.Amount, &p.Currency, &p.OrderID, &status, &meta,
		&created, &updated); err != nil {
		return Payment{}, err
	}
	if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
		return Payment{}, fmt.Errorf("decode metadata of %s: %w", p.OrderID, err)
	}
	p.ItemModel = ItemModel(model)
	p.Status = Status(status)
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	return p, nil
}

func encodeMeta(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (s *SQLStore) Create(ctx context.Context, p Payment) error {
	meta, err := encodeMeta(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO payments (`+cols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.UserID, p.ItemID, string(p.ItemModel), p.Amount, p.Currency, p.OrderID, string(p.Status), meta,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return common.NewError(common.ErrConflict, "order id already exists")
	}
	return err
}

func (s *SQLStore) GetByOrderID(ctx context.Context, orderID string) (Payment, error) {
	p, err := scan(s.db.QueryRowContext(ctx, `SELECT `+cols+` FROM payments WHERE order_id=$1`, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, common.ErrNotFound
	}
	return p, err
}

func (s *SQLStore) HasPaid(ctx context.Context, userID, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE user_id=$1 AND item_id=$2 AND status=$3`,
		userID, itemID, string(StatusPaid)).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]Payment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+cols+` FROM payments WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) Transition(ctx context.Context, orderID string, from, to Status, meta map[string]string, at time.Time) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var cur, raw string
		err := tx.QueryRowContext(ctx, `SELECT status, metadata_json FROM payments WHERE order_id=$1`, orderID).Scan(&cur, &raw)
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if err != nil {
			return err
		}
		if Status(cur) != from {
			return ErrStale
		}
		merged := map[string]string{}
		_ = json.Unmarshal([]byte(raw), &merged)
		for k, v := range meta {
			merged[k] = v
		}
		enc, err := encodeMeta(merged)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE payments SET status=$1, metadata_json=$2, updated_at=$3
			WHERE order_id=$4 AND status=$5`, string(to), enc, at.Unix(), orderID, string(from))
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStale
		}
		return nil
	})
}
