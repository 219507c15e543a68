package ledger

import (
	"math"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

// SoonWindow is the rolling window used for Expiry.SoonAmount.
const SoonWindow = 30 * 24 * time.Hour

// Expiry describes the next batch of credits due to expire.
type Expiry struct {
	NextDate   *time.Time `json:"next_date"`
	NextAmount int64      `json:"next_amount"`
	SoonAmount int64      `json:"soon_amount"`
	DaysLeft   int        `json:"days_left"`
}

// ProjectExpiry looks at credits that are still live at now. Credits whose
// expiry lands on the same calendar day as the earliest one (in now's
// location) are reported together as the next batch.
func ProjectExpiry(txs []model.PointTransaction, now time.Time) Expiry {
	var live []model.PointTransaction
	for _, t := range txs {
		if t.IsCredit() && t.ExpiresAt != nil && t.ExpiresAt.After(now) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return Expiry{}
	}

	next := *live[0].ExpiresAt
	for _, t := range live[1:] {
		if t.ExpiresAt.Before(next) {
			next = *t.ExpiresAt
		}
	}

	loc := now.Location()
	horizon := now.Add(SoonWindow)
	out := Expiry{NextDate: &next}
	for _, t := range live {
		if sameDay(*t.ExpiresAt, next, loc) {
			out.NextAmount += t.Delta
		}
		if !t.ExpiresAt.After(horizon) {
			out.SoonAmount += t.Delta
		}
	}

	days := int(math.Ceil(next.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	out.DaysLeft = days
	return out
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
