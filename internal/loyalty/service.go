// Package loyalty runs the point ledger and reward redemption flows on top of
// a store.Store.
package loyalty

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/muflih795/YBG-Database-3/internal/ledger"
	"github.com/muflih795/YBG-Database-3/internal/metrics"
	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
	"github.com/muflih795/YBG-Database-3/internal/tier"
)

const (
	DefaultCreditTTL = 365 * 24 * time.Hour
	WelcomeReason    = "Poin awal"
	EarnReason       = "Earned points"

	// MaxEarnAmount bounds a single credit.
	MaxEarnAmount = 1_000_000_000
)

// Events receives reward changes after they commit.
type Events interface {
	RewardChanged(r model.Reward)
}

// Notifier is told when a claim is handed off for the first time.
type Notifier interface {
	ClaimSent(ctx context.Context, c model.RewardClaim) error
}

type Service struct {
	store   store.Store
	tiers   *tier.Classifier
	logger  *slog.Logger
	metrics *metrics.Metrics

	events   Events
	notifier Notifier

	now        func() time.Time
	loc        *time.Location
	creditTTL  time.Duration
	welcome    int64
	newVoucher func() (string, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the zone used for calendar-day grouping.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithCreditTTL(d time.Duration) Option { return func(s *Service) { s.creditTTL = d } }

// WithWelcomePoints credits new users once on their first ledger read.
// Zero disables it.
func WithWelcomePoints(n int64) Option { return func(s *Service) { s.welcome = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithEvents(e Events) Option { return func(s *Service) { s.events = e } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithVoucherGenerator(fn func() (string, error)) Option {
	return func(s *Service) { s.newVoucher = fn }
}

func NewService(st store.Store, tiers *tier.Classifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		tiers:      tiers,
		logger:     logger.With("component", "loyalty"),
		now:        time.Now,
		loc:        time.UTC,
		creditTTL:  DefaultCreditTTL,
		newVoucher: NewVoucherCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// transactions returns the user's ledger, granting the welcome credit first
// if the ledger is empty and the credit is enabled.
func (s *Service) transactions(ctx context.Context, userID string) ([]model.PointTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(txs) > 0 || s.welcome <= 0 {
		return txs, nil
	}

	now := s.clock()
	granted := false
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		existing, err := tx.ListTransactions(ctx, userID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			txs = existing
			return nil
		}
		credit := s.credit(userID, s.welcome, WelcomeReason, now)
		if err := tx.InsertTransaction(ctx, &credit); err != nil {
			return err
		}
		txs = []model.PointTransaction{credit}
		granted = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("welcome credit: %w", err)
	}
	if granted {
		s.logger.Info("welcome credit granted", "user_id", userID, "points", s.welcome)
		s.metrics.Earned(s.welcome)
	}
	return txs, nil
}

func (s *Service) credit(userID string, amount int64, reason string, now time.Time) model.PointTransaction {
	t := model.PointTransaction{
		ID:        newID(now),
		UserID:    userID,
		Delta:     amount,
		Reason:    reason,
		CreatedAt: now,
	}
	if s.creditTTL > 0 {
		exp := now.Add(s.creditTTL)
		t.ExpiresAt = &exp
	}
	return t
}

// Balance is the caller's effective balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return ledger.EffectiveBalance(txs, s.clock()), nil
}

// History lists the caller's ledger newest first.
func (s *Service) History(ctx context.Context, userID string) ([]ledger.Entry, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ledger.History(txs, s.clock()), nil
}

func (s *Service) Expiry(ctx context.Context, userID string) (ledger.Expiry, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return ledger.Expiry{}, err
	}
	return ledger.ProjectExpiry(txs, s.clock()), nil
}

type Membership struct {
	Points int64         `json:"points"`
	Totals ledger.Totals `json:"totals"`
	Tier   tier.Result   `json:"tier"`
	Expiry ledger.Expiry `json:"expiry"`
	Tiers  []tier.Tier   `json:"tiers"`
}

// Membership classifies the caller's effective balance and projects the
// next expiry.
func (s *Service) Membership(ctx context.Context, userID string) (Membership, error) {
	txs, err := s.transactions(ctx, userID)
	if err != nil {
		return Membership{}, err
	}
	now := s.clock()
	totals := ledger.Summarize(txs, now)
	return Membership{
		Points: totals.Balance,
		Totals: totals,
		Tier:   s.tiers.Classify(totals.Balance),
		Expiry: ledger.ProjectExpiry(txs, now),
		Tiers:  s.tiers.Tiers(),
	}, nil
}

// Earn appends a credit expiring after the configured TTL and returns it with
// the new balance.
func (s *Service) Earn(ctx context.Context, userID string, amount int64, reason string) (model.PointTransaction, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return model.PointTransaction{}, 0, ErrUnauthenticated
	}
	if amount <= 0 || amount > MaxEarnAmount {
		return model.PointTransaction{}, 0, ErrInvalidAmount
	}
	if strings.TrimSpace(reason) == "" {
		reason = EarnReason
	}

	now := s.clock()
	credit := s.credit(userID, amount, reason, now)
	var balance int64
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &credit); err != nil {
			return err
		}
		txs, err := tx.ListTransactions(ctx, userID)
		if err != nil {
			return err
		}
		balance = ledger.EffectiveBalance(txs, now)
		return nil
	})
	if err != nil {
		return model.PointTransaction{}, 0, fmt.Errorf("earn points: %w", err)
	}

	s.metrics.Earned(amount)
	s.logger.Info("points earned", "user_id", userID, "amount", amount, "balance", balance)
	return credit, balance, nil
}

// Rewards lists active rewards, newest first.
func (s *Service) Rewards(ctx context.Context) ([]model.Reward, error) {
	return s.store.ListActiveRewards(ctx)
}

func (s *Service) Claims(ctx context.Context, userID string) ([]model.RewardClaim, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListClaims(ctx, userID)
}

// storeFailure wraps a store error so callers can match ErrStoreWriteFailed
// and still reach the cause.
func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreWriteFailed, op, err)
}
