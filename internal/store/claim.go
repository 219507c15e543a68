package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

func scanClaim(scanner interface{ Scan(...any) error }) (*model.RewardClaim, error) {
	var c model.RewardClaim
	var sent int
	var sentAt sql.NullTime

	err := scanner.Scan(&c.ID, &c.UserID, &c.RewardID, &c.Title, &c.ImageURL, &c.VoucherCode,
		&c.Status, &c.CreatedAt, &sent, &sentAt)
	if err != nil {
		return nil, err
	}

	c.SentToSA = sent != 0
	if sentAt.Valid {
		c.SentToSAAt = &sentAt.Time
	}
	return &c, nil
}

const claimCols = `id, user_id, reward_id, title, image_url, voucher_code, status, created_at, sent_to_sa, sent_to_sa_at`

// ListClaims returns the user's claims, newest first.
func (s queries) ListClaims(ctx context.Context, userID string) ([]model.RewardClaim, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+claimCols+` FROM reward_claims WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
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
	row := s.q.QueryRowContext(ctx, `SELECT `+claimCols+` FROM reward_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (t *sqliteTx) VoucherExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM reward_claims WHERE voucher_code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check voucher: %w", err)
	}
	return n > 0, nil
}

func (t *sqliteTx) InsertClaim(ctx context.Context, c *model.RewardClaim) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO reward_claims (id, user_id, reward_id, title, image_url, voucher_code, status, created_at, sent_to_sa)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		c.ID, c.UserID, c.RewardID, c.Title, c.ImageURL, c.VoucherCode, c.Status, c.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: reward_claims.voucher_code") {
			return ErrVoucherTaken
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (t *sqliteTx) MarkClaimSent(ctx context.Context, claimID, userID string, at time.Time) (bool, error) {
	var exists int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reward_claims WHERE id = ? AND user_id = ?`, claimID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("find claim: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	_, err = t.q.ExecContext(ctx,
		`UPDATE reward_claims SET sent_to_sa = 1, sent_to_sa_at = ? WHERE id = ? AND user_id = ? AND sent_to_sa = 0`,
		at.UTC(), claimID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark claim sent: %w", err)
	}
	return true, nil
}
