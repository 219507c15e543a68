package model

import "time"

type Reward struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Cost        int64     `json:"cost"`
	Stock       int64     `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Claimable reports whether the reward passes the static claim gates
// (active, positive cost, stock left).
func (r Reward) Claimable() bool {
	return r.Active && r.Cost > 0 && r.Stock > 0
}

const ClaimStatusRequested = "requested"

// RewardClaim keeps its own copy of the reward title and image so that
// history stays stable when the reward is edited later.
type RewardClaim struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	RewardID    string     `json:"reward_id"`
	Title       string     `json:"title"`
	ImageURL    string     `json:"image_url"`
	VoucherCode string     `json:"voucher_code"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SentToSA    bool       `json:"sent_to_sa"`
	SentToSAAt  *time.Time `json:"sent_to_sa_at"`
}
