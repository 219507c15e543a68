package store

import (
	"context"
	"database/sql"
	"fmt"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the read methods shared by SQLite and sqliteTx.
type queries struct {
	q querier
}

// SQLite is the default Store. The database must be opened with
// _txlock=immediate (see database.Open) so that every transaction takes the
// write lock up front.
type SQLite struct {
	queries
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{queries: queries{q: db}, db: db}
}

func (s *SQLite) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{queries: queries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqliteTx struct {
	queries
}

// LockUser is a no-op: BEGIN IMMEDIATE already serializes writers.
func (t *sqliteTx) LockUser(ctx context.Context, userID string) error {
	return ctx.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
