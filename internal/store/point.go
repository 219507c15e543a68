package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.PointTransaction, error) {
	var t model.PointTransaction
	var expiresAt sql.NullTime

	err := scanner.Scan(&t.ID, &t.UserID, &t.Delta, &t.Reason, &t.CreatedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return &t, nil
}

const transactionCols = `id, user_id, delta, reason, created_at, expires_at`

// ListTransactions returns the user's full ledger, newest first.
func (s queries) ListTransactions(ctx context.Context, userID string) ([]model.PointTransaction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM point_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.PointTransaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (t *sqliteTx) InsertTransaction(ctx context.Context, pt *model.PointTransaction) error {
	var expiresAt sql.NullTime
	if pt.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: pt.ExpiresAt.UTC(), Valid: true}
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO point_transactions (id, user_id, delta, reason, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pt.ID, pt.UserID, pt.Delta, pt.Reason, pt.CreatedAt.UTC(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
