package loyalty

import (
	"context"
	"fmt"
	"strings"

	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
)

type RewardInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Cost        int64  `json:"cost"`
	Stock       int64  `json:"stock"`
	Active      *bool  `json:"active"`
}

func (in RewardInput) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidReward)
	case in.Cost <= 0:
		return fmt.Errorf("%w: cost must be greater than 0", ErrInvalidReward)
	case in.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidReward)
	}
	return nil
}

func (in RewardInput) apply(r *model.Reward) {
	r.Title = strings.TrimSpace(in.Title)
	r.Description = in.Description
	r.ImageURL = in.ImageURL
	r.Cost = in.Cost
	r.Stock = in.Stock
	if in.Active != nil {
		r.Active = *in.Active
	}
}

// AllRewards lists every reward, including inactive ones.
func (s *Service) AllRewards(ctx context.Context) ([]model.Reward, error) {
	return s.store.ListRewards(ctx)
}

func (s *Service) CreateReward(ctx context.Context, in RewardInput) (model.Reward, error) {
	if err := in.validate(); err != nil {
		return model.Reward{}, err
	}
	now := s.clock()
	r := model.Reward{ID: newID(now), Active: true, CreatedAt: now}
	in.apply(&r)

	if err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateReward(ctx, &r)
	}); err != nil {
		return model.Reward{}, fmt.Errorf("create reward: %w", err)
	}

	s.logger.Info("reward created", "reward_id", r.ID, "title", r.Title)
	if s.events != nil {
		s.events.RewardChanged(r)
	}
	return r, nil
}

// UpdateReward replaces the editable fields of a reward. Existing claims keep
// their own title and image.
func (s *Service) UpdateReward(ctx context.Context, id string, in RewardInput) (model.Reward, error) {
	if err := in.validate(); err != nil {
		return model.Reward{}, err
	}

	var out model.Reward
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetReward(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrRewardNotFound
		}
		in.apply(r)
		ok, err := tx.UpdateReward(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRewardNotFound
		}
		out = *r
		return nil
	})
	if err != nil {
		return model.Reward{}, err
	}

	s.logger.Info("reward updated", "reward_id", out.ID, "stock", out.Stock, "active", out.Active)
	if s.events != nil {
		s.events.RewardChanged(out)
	}
	return out, nil
}
