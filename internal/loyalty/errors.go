package loyalty

import "errors"

var (
	ErrUnauthenticated     = errors.New("not signed in")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrRewardInactive      = errors.New("reward is not active")
	ErrInvalidRewardConfig = errors.New("reward is misconfigured")
	ErrOutOfStock          = errors.New("reward is out of stock")
	ErrInsufficientPoints  = errors.New("not enough points")
	ErrStoreWriteFailed    = errors.New("could not record the redemption")
	ErrClaimNotFound       = errors.New("claim not found")
	ErrInvalidAmount       = errors.New("amount must be a whole number between 1 and 1000000000")
	ErrInvalidReward       = errors.New("invalid reward")
)
