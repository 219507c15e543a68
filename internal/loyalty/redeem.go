package loyalty

import (
	"context"
	"errors"
	"strings"

	"github.com/muflih795/YBG-Database-3/internal/ledger"
	"github.com/muflih795/YBG-Database-3/internal/metrics"
	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
)

const redeemReasonPrefix = "Redeem reward: "

type Redemption struct {
	Claim           model.RewardClaim
	Reward          model.Reward
	VoucherCode     string
	RemainingPoints int64
}

// Redeem exchanges points for one unit of a reward. The balance check, stock
// decrement, claim insert and ledger debit commit together or not at all.
func (s *Service) Redeem(ctx context.Context, userID, rewardID string) (Redemption, error) {
	if strings.TrimSpace(userID) == "" {
		s.metrics.Redeemed(metrics.OutcomeUnauth, 0)
		return Redemption{}, ErrUnauthenticated
	}
	if strings.TrimSpace(rewardID) == "" {
		s.metrics.Redeemed(metrics.OutcomeNotFound, 0)
		return Redemption{}, ErrRewardNotFound
	}

	now := s.clock()
	var out Redemption
	var voucher string

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return storeFailure("lock user", err)
		}

		reward, err := tx.GetReward(ctx, rewardID)
		if err != nil {
			return storeFailure("load reward", err)
		}
		switch {
		case reward == nil:
			return ErrRewardNotFound
		case !reward.Active:
			return ErrRewardInactive
		case reward.Cost <= 0:
			return ErrInvalidRewardConfig
		case reward.Stock <= 0:
			return ErrOutOfStock
		}

		txs, err := tx.ListTransactions(ctx, userID)
		if err != nil {
			return storeFailure("load ledger", err)
		}
		if ledger.EffectiveBalance(txs, now) < reward.Cost {
			return ErrInsufficientPoints
		}

		ok, err := tx.DecrementStock(ctx, reward.ID)
		if err != nil {
			return storeFailure("decrement stock", err)
		}
		if !ok {
			return ErrOutOfStock
		}

		voucher, err = s.uniqueVoucher(ctx, tx)
		if err != nil {
			return storeFailure("voucher", err)
		}

		claim := model.RewardClaim{
			ID:          newID(now),
			UserID:      userID,
			RewardID:    reward.ID,
			Title:       reward.Title,
			ImageURL:    reward.ImageURL,
			VoucherCode: voucher,
			Status:      model.ClaimStatusRequested,
			CreatedAt:   now,
		}
		if err := tx.InsertClaim(ctx, &claim); err != nil {
			return storeFailure("insert claim", err)
		}

		debit := model.PointTransaction{
			ID:        newID(now),
			UserID:    userID,
			Delta:     -reward.Cost,
			Reason:    redeemReasonPrefix + reward.Title,
			CreatedAt: now,
		}
		if err := tx.InsertTransaction(ctx, &debit); err != nil {
			return storeFailure("insert debit", err)
		}

		reward.Stock--
		out = Redemption{
			Claim:           claim,
			Reward:          *reward,
			VoucherCode:     voucher,
			RemainingPoints: ledger.EffectiveBalance(append(txs, debit), now),
		}
		return nil
	})
	if err != nil {
		if !isValidationError(err) {
			s.logger.Error("redemption failed",
				"user_id", userID, "reward_id", rewardID, "voucher", voucher, "error", err)
			if !errors.Is(err, ErrStoreWriteFailed) {
				err = storeFailure("commit", err)
			}
		}
		s.metrics.Redeemed(outcome(err), 0)
		return Redemption{}, err
	}

	s.metrics.Redeemed(metrics.OutcomeOK, out.Reward.Cost)
	s.logger.Info("reward redeemed",
		"user_id", userID, "reward_id", out.Reward.ID, "claim_id", out.Claim.ID, "remaining", out.RemainingPoints)
	if s.events != nil {
		s.events.RewardChanged(out.Reward)
	}
	return out, nil
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrRewardNotFound) ||
		errors.Is(err, ErrRewardInactive) ||
		errors.Is(err, ErrInvalidRewardConfig) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInsufficientPoints)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRewardNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrRewardInactive):
		return metrics.OutcomeInactive
	case errors.Is(err, ErrInvalidRewardConfig):
		return metrics.OutcomeInvalidConfig
	case errors.Is(err, ErrOutOfStock):
		return metrics.OutcomeOutOfStock
	case errors.Is(err, ErrInsufficientPoints):
		return metrics.OutcomeInsufficient
	}
	return metrics.OutcomeStoreError
}

// MarkSent records that the caller handed the claim off for fulfilment. The
// first call stamps sent_to_sa_at; later calls return the claim unchanged.
func (s *Service) MarkSent(ctx context.Context, userID, claimID string) (model.RewardClaim, error) {
	if strings.TrimSpace(userID) == "" {
		return model.RewardClaim{}, ErrUnauthenticated
	}
	if strings.TrimSpace(claimID) == "" {
		return model.RewardClaim{}, ErrClaimNotFound
	}

	now := s.clock()
	var claim model.RewardClaim
	var first bool
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		before, err := tx.GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if before == nil || before.UserID != userID {
			return ErrClaimNotFound
		}

		ok, err := tx.MarkClaimSent(ctx, claimID, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrClaimNotFound
		}

		after, err := tx.GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		claim = *after
		first = !before.SentToSA
		return nil
	})
	if err != nil {
		return model.RewardClaim{}, err
	}

	if first {
		s.metrics.Sent()
		s.logger.Info("claim sent", "user_id", userID, "claim_id", claimID, "voucher", claim.VoucherCode)
		if s.notifier != nil {
			if err := s.notifier.ClaimSent(ctx, claim); err != nil {
				s.logger.Warn("claim notification failed", "claim_id", claimID, "error", err)
			}
		}
	}
	return claim, nil
}
