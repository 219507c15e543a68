// Package store persists rewards, claims and the point ledger.
//
// All multi-row writes go through Store.WithTx so that a redemption either
// fully commits (stock, claim, debit) or leaves nothing behind.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

// ErrVoucherTaken is returned by InsertClaim when the voucher code is already
// used by another claim.
var ErrVoucherTaken = errors.New("voucher code already in use")

// Reader is the read side shared by stores and transactions. Single-row
// getters return nil, nil when the row does not exist.
type Reader interface {
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	ListActiveRewards(ctx context.Context) ([]model.Reward, error)
	ListRewards(ctx context.Context) ([]model.Reward, error)
	ListTransactions(ctx context.Context, userID string) ([]model.PointTransaction, error)
	ListClaims(ctx context.Context, userID string) ([]model.RewardClaim, error)
	GetClaim(ctx context.Context, id string) (*model.RewardClaim, error)
}

// Tx is a unit of work. Implementations guarantee that work for the same
// user is serialized once LockUser returns.
type Tx interface {
	Reader

	LockUser(ctx context.Context, userID string) error

	// DecrementStock takes one unit of stock. It reports false when the
	// reward has no stock left; the row is not modified in that case.
	DecrementStock(ctx context.Context, rewardID string) (bool, error)

	VoucherExists(ctx context.Context, code string) (bool, error)
	InsertClaim(ctx context.Context, c *model.RewardClaim) error
	InsertTransaction(ctx context.Context, t *model.PointTransaction) error

	// MarkClaimSent flips sent_to_sa for a claim owned by userID. It reports
	// false when no such claim exists. A claim that was already sent keeps
	// its original timestamp.
	MarkClaimSent(ctx context.Context, claimID, userID string, at time.Time) (bool, error)

	CreateReward(ctx context.Context, r *model.Reward) error
	UpdateReward(ctx context.Context, r *model.Reward) (bool, error)
}

type Store interface {
	Reader

	// WithTx runs fn inside a transaction. A nil return commits; anything
	// else rolls back and is returned unchanged.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
