// Package ledger derives balances and expiry projections from the
// append-only point transaction log. Everything here is pure: callers pass
// the full transaction list and the reference time.
package ledger

import (
	"math"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

// EffectiveBalance returns unexpired credits minus all debits, floored at 0.
func EffectiveBalance(txs []model.PointTransaction, now time.Time) int64 {
	var credits, debits int64
	for _, t := range txs {
		switch {
		case t.IsCredit():
			if !t.ExpiredAt(now) {
				credits = addCapped(credits, t.Delta)
			}
		case t.IsDebit():
			debits = addCapped(debits, -t.Delta)
		}
	}
	if credits < debits {
		return 0
	}
	return credits - debits
}

// Totals is the earned/spent breakdown shown next to the balance.
type Totals struct {
	Earned  int64 `json:"total_earned"`
	Expired int64 `json:"total_expired"`
	Spent   int64 `json:"total_spent"`
	Balance int64 `json:"balance"`
}

// Summarize splits the ledger into earned, expired and spent points.
// Balance matches EffectiveBalance for the same input.
func Summarize(txs []model.PointTransaction, now time.Time) Totals {
	var out Totals
	for _, t := range txs {
		switch {
		case t.IsCredit():
			out.Earned = addCapped(out.Earned, t.Delta)
			if t.ExpiredAt(now) {
				out.Expired = addCapped(out.Expired, t.Delta)
			}
		case t.IsDebit():
			out.Spent = addCapped(out.Spent, -t.Delta)
		}
	}
	out.Balance = EffectiveBalance(txs, now)
	return out
}

// addCapped adds two non-negative amounts, saturating at math.MaxInt64.
func addCapped(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
