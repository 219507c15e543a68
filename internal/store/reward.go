package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active int

	err := scanner.Scan(&r.ID, &r.Title, &r.Description, &r.ImageURL, &r.Cost, &r.Stock, &active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, title, description, image_url, cost, stock, active, created_at`

func (s queries) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// ListActiveRewards returns active rewards, newest first.
func (s queries) ListActiveRewards(ctx context.Context) ([]model.Reward, error) {
	return s.listRewards(ctx, `SELECT `+rewardCols+` FROM rewards WHERE active = 1 ORDER BY created_at DESC, id DESC`)
}

// ListRewards returns every reward, active first, then newest first.
func (s queries) ListRewards(ctx context.Context) ([]model.Reward, error) {
	return s.listRewards(ctx, `SELECT `+rewardCols+` FROM rewards ORDER BY active DESC, created_at DESC, id DESC`)
}

func (s queries) listRewards(ctx context.Context, query string) ([]model.Reward, error) {
	rows, err := s.q.QueryContext(ctx, query)
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

func (t *sqliteTx) DecrementStock(ctx context.Context, rewardID string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE rewards SET stock = stock - 1 WHERE id = ? AND stock > 0`, rewardID)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *sqliteTx) CreateReward(ctx context.Context, r *model.Reward) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO rewards (id, title, description, image_url, cost, stock, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Description, r.ImageURL, r.Cost, r.Stock, boolInt(r.Active), r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateReward(ctx context.Context, r *model.Reward) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE rewards SET title = ?, description = ?, image_url = ?, cost = ?, stock = ?, active = ? WHERE id = ?`,
		r.Title, r.Description, r.ImageURL, r.Cost, r.Stock, boolInt(r.Active), r.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update reward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
