// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

// Store persists the ledger in PostgreSQL. Redemptions serialize per user
// with a transaction-scoped advisory lock and lock the reward row with
// SELECT ... FOR UPDATE.
type Store struct {
	queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres: nil pool")
	}
	return &Store{queries: queries{q: pool}, pool: pool}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{queries: queries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const rewardCols = `id, title, description, image_url, cost, stock, active, created_at`

func scanReward(row pgx.Row) (*model.Reward, error) {
	var r model.Reward
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &r.ImageURL, &r.Cost, &r.Stock, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s queries) getReward(ctx context.Context, query, id string) (*model.Reward, error) {
	r, err := scanReward(s.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s queries) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	return s.getReward(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = $1`, id)
}

func (s queries) ListActiveRewards(ctx context.Context) ([]model.Reward, error) {
	return s.listRewards(ctx, `SELECT `+rewardCols+` FROM rewards WHERE active ORDER BY created_at DESC, id DESC`)
}

func (s queries) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return s.listRewards(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY active DESC, created_at DESC, id DESC`)
}

func (s queries) listRewards(ctx context.Context, query string) ([]model.Reward, error) {
	rows, err := s.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

const transactionCols = `id, user_id, delta, reason, created_at, expires_at`

func (s queries) ListTransactions(ctx context.Context, userID string) ([]model.PointTransaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+transactionCols+` FROM point_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.PointTransaction{}
	for rows.Next() {
		var t model.PointTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Delta, &t.Reason, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

const claimCols = `id, user_id, reward_id, title, image_url, voucher_code, status, created_at, sent_to_sa, sent_to_sa_at`

func scanClaim(row pgx.Row) (*model.RewardClaim, error) {
	var c model.RewardClaim
	err := row.Scan(&c.ID, &c.UserID, &c.RewardID, &c.Title, &c.ImageURL, &c.VoucherCode,
		&c.Status, &c.CreatedAt, &c.SentToSA, &c.SentToSAAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s queries) ListClaims(ctx context.Context, userID string) ([]model.RewardClaim, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+claimCols+` FROM reward_claims WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := []model.RewardClaim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func (s queries) GetClaim(ctx context.Context, id string) (*model.RewardClaim, error) {
	c, err := scanClaim(s.q.QueryRow(ctx, `SELECT `+claimCols+` FROM reward_claims WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

type pgTx struct {
	queries
}

// GetReward inside a transaction locks the row until commit.
func (t *pgTx) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	return t.getReward(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockUser(ctx context.Context, userID string) error {
	if _, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, rewardID string) (bool, error) {
	tag, err := t.q.Exec(ctx, `UPDATE rewards SET stock = stock - 1 WHERE id = $1 AND stock > 0`, rewardID)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) VoucherExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reward_claims WHERE voucher_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check voucher: %w", err)
	}
	return exists, nil
}

func (t *pgTx) InsertClaim(ctx context.Context, c *model.RewardClaim) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO reward_claims (id, user_id, reward_id, title, image_url, voucher_code, status, created_at, sent_to_sa)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`,
		c.ID, c.UserID, c.RewardID, c.Title, c.ImageURL, c.VoucherCode, c.Status, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "reward_claims_voucher_code_key" {
			return store.ErrVoucherTaken
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, pt *model.PointTransaction) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO point_transactions (id, user_id, delta, reason, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pt.ID, pt.UserID, pt.Delta, pt.Reason, pt.CreatedAt, pt.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) MarkClaimSent(ctx context.Context, claimID, userID string, at time.Time) (bool, error) {
	var sent bool
	err := t.q.QueryRow(ctx,
		`SELECT sent_to_sa FROM reward_claims WHERE id = $1 AND user_id = $2 FOR UPDATE`, claimID, userID,
	).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find claim: %w", err)
	}
	if sent {
		return true, nil
	}

	if _, err := t.q.Exec(ctx,
		`UPDATE reward_claims SET sent_to_sa = TRUE, sent_to_sa_at = $1 WHERE id = $2`, at, claimID,
	); err != nil {
		return false, fmt.Errorf("mark claim sent: %w", err)
	}
	return true, nil
}

func (t *pgTx) CreateReward(ctx context.Context, r *model.Reward) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO rewards (id, title, description, image_url, cost, stock, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Title, r.Description, r.ImageURL, r.Cost, r.Stock, r.Active, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateReward(ctx context.Context, r *model.Reward) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`UPDATE rewards SET title = $1, description = $2, image_url = $3, cost = $4, stock = $5, active = $6 WHERE id = $7`,
		r.Title, r.Description, r.ImageURL, r.Cost, r.Stock, r.Active, r.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
