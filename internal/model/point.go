package model

import "time"

// PointTransaction is one immutable ledger line. Positive Delta is a credit,
// negative is a debit. ExpiresAt only applies to credits; nil never expires.
type PointTransaction struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Delta     int64      `json:"delta"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (t PointTransaction) IsCredit() bool { return t.Delta > 0 }

func (t PointTransaction) IsDebit() bool { return t.Delta < 0 }

// ExpiredAt reports whether a credit no longer counts at now. The expiry
// instant itself is already expired.
func (t PointTransaction) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
