package ledger

import (
	"sort"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

const (
	TypeCredit = "credit"
	TypeDebit  = "debit"

	StatusActive  = "active"
	StatusExpired = "expired"
)

// Entry is the display form of a transaction. Type and Status are derived,
// never stored.
type Entry struct {
	ID          string     `json:"id"`
	Delta       int64      `json:"delta"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Status      string     `json:"status"`
}

// NewEntry converts one transaction for display.
func NewEntry(t model.PointTransaction, now time.Time) Entry {
	e := Entry{
		ID:          t.ID,
		Delta:       t.Delta,
		Amount:      t.Delta,
		Type:        TypeCredit,
		Description: t.Reason,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
		Status:      StatusActive,
	}
	if t.Delta < 0 {
		e.Amount = -t.Delta
		e.Type = TypeDebit
	}
	if t.ExpiredAt(now) {
		e.Status = StatusExpired
	}
	return e
}

// History returns display entries, newest first.
func History(txs []model.PointTransaction, now time.Time) []Entry {
	out := make([]Entry, 0, len(txs))
	for _, t := range txs {
		out = append(out, NewEntry(t, now))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
