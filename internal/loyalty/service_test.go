package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/database"
	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
	"github.com/muflih795/YBG-Database-3/internal/tier"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, st store.Store, opts ...Option) *Service {
	t.Helper()
	tiers, err := tier.New(tier.Default)
	if err != nil {
		t.Fatalf("tiers: %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(st, tiers, slog.Default(), opts...)
}

func setupSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ybg.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSQLite(db)
}

func eachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, setupSQLiteStore(t)) })
}

func seedReward(t *testing.T, st store.Store, r model.Reward) {
	t.Helper()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = testNow.Add(-time.Hour)
	}
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateReward(context.Background(), &r)
	})
	if err != nil {
		t.Fatalf("seed reward: %v", err)
	}
}

func seedCredit(t *testing.T, st store.Store, userID string, amount int64, expiresAt *time.Time) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertTransaction(context.Background(), &model.PointTransaction{
			ID: newID(testNow), UserID: userID, Delta: amount, Reason: "seed",
			CreatedAt: testNow.Add(-24 * time.Hour), ExpiresAt: expiresAt,
		})
	})
	if err != nil {
		t.Fatalf("seed credit: %v", err)
	}
}

func stockOf(t *testing.T, st store.Store, id string) int64 {
	t.Helper()
	r, err := st.GetReward(context.Background(), id)
	if err != nil || r == nil {
		t.Fatalf("get reward %s: %v", id, err)
	}
	return r.Stock
}

func inAYear() *time.Time {
	exp := testNow.Add(DefaultCreditTTL)
	return &exp
}

func TestRedeemHappyPath(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedReward(t, st, model.Reward{ID: "wallet", Title: "Mini City Wallet", ImageURL: "/w.jpg", Cost: 2, Stock: 5, Active: true})
		seedCredit(t, st, "u1", 10, inAYear())
		svc := newTestService(t, st)

		got, err := svc.Redeem(ctx, "u1", "wallet")
		if err != nil {
			t.Fatalf("redeem: %v", err)
		}
		if got.RemainingPoints != 8 {
			t.Errorf("remaining = %d, want 8", got.RemainingPoints)
		}
		if len(got.VoucherCode) != VoucherLength {
			t.Errorf("voucher %q has length %d, want %d", got.VoucherCode, len(got.VoucherCode), VoucherLength)
		}
		if got.Claim.Status != model.ClaimStatusRequested {
			t.Errorf("status = %q, want %q", got.Claim.Status, model.ClaimStatusRequested)
		}
		if got.Claim.Title != "Mini City Wallet" || got.Claim.ImageURL != "/w.jpg" {
			t.Errorf("claim snapshot = %q/%q", got.Claim.Title, got.Claim.ImageURL)
		}
		if s := stockOf(t, st, "wallet"); s != 4 {
			t.Errorf("stock = %d, want 4", s)
		}

		bal, err := svc.Balance(ctx, "u1")
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if bal != 8 {
			t.Errorf("balance = %d, want 8", bal)
		}

		txs, _ := st.ListTransactions(ctx, "u1")
		var debit *model.PointTransaction
		for i := range txs {
			if txs[i].Delta < 0 {
				debit = &txs[i]
			}
		}
		if debit == nil {
			t.Fatal("expected a debit")
		}
		if debit.Delta != -2 || debit.Reason != "Redeem reward: Mini City Wallet" {
			t.Errorf("debit = %d %q", debit.Delta, debit.Reason)
		}

		claims, _ := svc.Claims(ctx, "u1")
		if len(claims) != 1 || claims[0].VoucherCode != got.VoucherCode {
			t.Errorf("claims = %+v", claims)
		}
	})
}

func TestRedeemValidationOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedReward(t, st, model.Reward{ID: "off", Title: "Off", Cost: 1, Stock: 1, Active: false})
	seedReward(t, st, model.Reward{ID: "free", Title: "Free", Cost: 0, Stock: 0, Active: true})
	seedReward(t, st, model.Reward{ID: "empty", Title: "Empty", Cost: 1, Stock: 0, Active: true})
	seedReward(t, st, model.Reward{ID: "pricey", Title: "Pricey", Cost: 50, Stock: 3, Active: true})
	seedCredit(t, st, "u1", 10, inAYear())
	svc := newTestService(t, st)

	cases := []struct {
		user, reward string
		want         error
	}{
		{"", "pricey", ErrUnauthenticated},
		{"u1", "", ErrRewardNotFound},
		{"u1", "missing", ErrRewardNotFound},
		{"u1", "off", ErrRewardInactive},
		{"u1", "free", ErrInvalidRewardConfig},
		{"u1", "empty", ErrOutOfStock},
		{"u1", "pricey", ErrInsufficientPoints},
	}
	for _, tc := range cases {
		if _, err := svc.Redeem(ctx, tc.user, tc.reward); !errors.Is(err, tc.want) {
			t.Errorf("redeem(%q, %q) err = %v, want %v", tc.user, tc.reward, err, tc.want)
		}
	}
}

func TestRedeemInsufficientWritesNothing(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 11, Stock: 2, Active: true})
		seedCredit(t, st, "u1", 10, inAYear())
		svc := newTestService(t, st)

		if _, err := svc.Redeem(ctx, "u1", "r"); !errors.Is(err, ErrInsufficientPoints) {
			t.Fatalf("err = %v, want ErrInsufficientPoints", err)
		}
		if s := stockOf(t, st, "r"); s != 2 {
			t.Errorf("stock = %d, want 2", s)
		}
		claims, _ := st.ListClaims(ctx, "u1")
		if len(claims) != 0 {
			t.Errorf("claims = %d, want 0", len(claims))
		}
		txs, _ := st.ListTransactions(ctx, "u1")
		if len(txs) != 1 {
			t.Errorf("transactions = %d, want 1", len(txs))
		}
	})
}

func TestRedeemExpiredCreditsDoNotCount(t *testing.T) {
	st := store.NewMemory()
	seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 1, Stock: 1, Active: true})
	yesterday := testNow.Add(-24 * time.Hour)
	seedCredit(t, st, "u1", 10, &yesterday)
	svc := newTestService(t, st)

	bal, err := svc.Balance(context.Background(), "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
	if _, err := svc.Redeem(context.Background(), "u1", "r"); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("err = %v, want ErrInsufficientPoints", err)
	}
}

func TestRedeemConcurrentLastUnit(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedReward(t, st, model.Reward{ID: "last", Title: "Last", Cost: 1, Stock: 1, Active: true})
		users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
		for _, u := range users {
			seedCredit(t, st, u, 5, inAYear())
		}
		svc := newTestService(t, st)

		var wg sync.WaitGroup
		errs := make(chan error, len(users))
		for _, u := range users {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				_, err := svc.Redeem(ctx, u, "last")
				errs <- err
			}(u)
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrOutOfStock):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("successful redemptions = %d, want 1", wins)
		}
		if s := stockOf(t, st, "last"); s != 0 {
			t.Errorf("stock = %d, want 0", s)
		}
	})
}

func TestRedeemConcurrentSameUserCannotOverspend(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 2, Stock: 10, Active: true})
		seedCredit(t, st, "u1", 3, inAYear())
		svc := newTestService(t, st)

		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Redeem(ctx, "u1", "r")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		wins := 0
		for err := range errs {
			if err == nil {
				wins++
			} else if !errors.Is(err, ErrInsufficientPoints) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("successful redemptions = %d, want 1", wins)
		}
		bal, _ := svc.Balance(ctx, "u1")
		if bal != 1 {
			t.Errorf("balance = %d, want 1", bal)
		}
	})
}

func TestRedeemRetriesVoucherCollision(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 1, Stock: 5, Active: true})
	seedCredit(t, st, "u1", 10, inAYear())

	codes := []string{"AAAAAAAAAA", "AAAAAAAAAA", "BBBBBBBBBB"}
	next := 0
	gen := func() (string, error) {
		c := codes[next]
		next++
		return c, nil
	}
	svc := newTestService(t, st, WithVoucherGenerator(gen))

	first, err := svc.Redeem(ctx, "u1", "r")
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	second, err := svc.Redeem(ctx, "u1", "r")
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if first.VoucherCode != "AAAAAAAAAA" || second.VoucherCode != "BBBBBBBBBB" {
		t.Errorf("vouchers = %q, %q", first.VoucherCode, second.VoucherCode)
	}
}

func TestRedeemVoucherExhaustionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 1, Stock: 5, Active: true})
	seedCredit(t, st, "u1", 10, inAYear())
	svc := newTestService(t, st, WithVoucherGenerator(func() (string, error) { return "SAMECODE22", nil }))

	if _, err := svc.Redeem(ctx, "u1", "r"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := svc.Redeem(ctx, "u1", "r"); !errors.Is(err, ErrStoreWriteFailed) {
		t.Fatalf("err = %v, want ErrStoreWriteFailed", err)
	}
	if s := stockOf(t, st, "r"); s != 4 {
		t.Errorf("stock = %d, want 4", s)
	}
	bal, _ := svc.Balance(ctx, "u1")
	if bal != 9 {
		t.Errorf("balance = %d, want 9", bal)
	}
}

// failingStore fails every ledger insert inside a transaction.
type failingStore struct {
	*store.Memory
}

type failingTx struct {
	store.Tx
}

func (f failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Memory.WithTx(ctx, func(tx store.Tx) error { return fn(failingTx{tx}) })
}

func (failingTx) InsertTransaction(context.Context, *model.PointTransaction) error {
	return errors.New("disk full")
}

func TestRedeemStoreFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedReward(t, mem, model.Reward{ID: "r", Title: "R", Cost: 1, Stock: 5, Active: true})
	seedCredit(t, mem, "u1", 10, inAYear())
	svc := newTestService(t, failingStore{mem})

	_, err := svc.Redeem(ctx, "u1", "r")
	if !errors.Is(err, ErrStoreWriteFailed) {
		t.Fatalf("err = %v, want ErrStoreWriteFailed", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want cause in message", err)
	}
	if s := stockOf(t, mem, "r"); s != 5 {
		t.Errorf("stock = %d, want 5", s)
	}
	claims, _ := mem.ListClaims(ctx, "u1")
	if len(claims) != 0 {
		t.Errorf("claims = %d, want 0", len(claims))
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.RewardClaim
}

func (n *recordingNotifier) ClaimSent(_ context.Context, c model.RewardClaim) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return nil
}

func TestMarkSentIdempotent(t *testing.T) {
	eachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		seedReward(t, st, model.Reward{ID: "r", Title: "R", Cost: 1, Stock: 5, Active: true})
		seedCredit(t, st, "u1", 10, inAYear())
		notifier := &recordingNotifier{}
		svc := newTestService(t, st, WithNotifier(notifier))

		red, err := svc.Redeem(ctx, "u1", "r")
		if err != nil {
			t.Fatalf("redeem: %v", err)
		}

		first, err := svc.MarkSent(ctx, "u1", red.Claim.ID)
		if err != nil {
			t.Fatalf("mark sent: %v", err)
		}
		if !first.SentToSA || first.SentToSAAt == nil {
			t.Fatalf("claim not marked: %+v", first)
		}

		second, err := svc.MarkSent(ctx, "u1", red.Claim.ID)
		if err != nil {
			t.Fatalf("mark sent again: %v", err)
		}
		if !second.SentToSAAt.Equal(*first.SentToSAAt) {
			t.Errorf("sent_to_sa_at changed: %v -> %v", first.SentToSAAt, second.SentToSAAt)
		}
		if len(notifier.sent) != 1 {
			t.Errorf("notifications = %d, want 1", len(notifier.sent))
		}

		if _, err := svc.MarkSent(ctx, "u2", red.Claim.ID); !errors.Is(err, ErrClaimNotFound) {
			t.Errorf("foreign mark err = %v, want ErrClaimNotFound", err)
		}
		if _, err := svc.MarkSent(ctx, "u1", "missing"); !errors.Is(err, ErrClaimNotFound) {
			t.Errorf("missing mark err = %v, want ErrClaimNotFound", err)
		}
		if _, err := svc.MarkSent(ctx, "", red.Claim.ID); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("anonymous mark err = %v, want ErrUnauthenticated", err)
		}
	})
}

func TestEarn(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(t, st)

	rec, bal, err := svc.Earn(ctx, "u1", 7, "")
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if bal != 7 {
		t.Errorf("balance = %d, want 7", bal)
	}
	if rec.Reason != EarnReason {
		t.Errorf("reason = %q, want %q", rec.Reason, EarnReason)
	}
	if rec.ExpiresAt == nil || !rec.ExpiresAt.Equal(testNow.Add(DefaultCreditTTL)) {
		t.Errorf("expires_at = %v, want one year out", rec.ExpiresAt)
	}

	if _, _, err := svc.Earn(ctx, "u1", 0, "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount err = %v, want ErrInvalidAmount", err)
	}
	if _, _, err := svc.Earn(ctx, "u1", MaxEarnAmount+1, "x"); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("oversized amount err = %v, want ErrInvalidAmount", err)
	}
	if _, bal, err := svc.Earn(ctx, "u1", MaxEarnAmount, "x"); err != nil || bal != MaxEarnAmount+7 {
		t.Errorf("max amount = %d, %v; want %d, nil", bal, err, MaxEarnAmount+7)
	}
	if _, _, err := svc.Earn(ctx, "", 5, "x"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous err = %v, want ErrUnauthenticated", err)
	}
}

func TestWelcomeCreditGrantedOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(t, st, WithWelcomePoints(10))

	for i := 0; i < 3; i++ {
		bal, err := svc.Balance(ctx, "u1")
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if bal != 10 {
			t.Errorf("balance = %d, want 10", bal)
		}
	}
	txs, _ := st.ListTransactions(ctx, "u1")
	if len(txs) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txs))
	}
	if txs[0].Reason != WelcomeReason {
		t.Errorf("reason = %q, want %q", txs[0].Reason, WelcomeReason)
	}
}

func TestMembership(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedCredit(t, st, "u1", 30, inAYear())
	svc := newTestService(t, st)

	m, err := svc.Membership(ctx, "u1")
	if err != nil {
		t.Fatalf("membership: %v", err)
	}
	if m.Points != 30 {
		t.Errorf("points = %d, want 30", m.Points)
	}
	if m.Tier.Tier != "Friend" || m.Tier.NextTier != "Bestie" || m.Tier.PointsToNext != 20 {
		t.Errorf("tier = %+v", m.Tier)
	}
	if m.Expiry.NextAmount != 30 {
		t.Errorf("next expiring = %d, want 30", m.Expiry.NextAmount)
	}
}

func TestAdminRewardLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newTestService(t, st)

	if _, err := svc.CreateReward(ctx, RewardInput{Title: "x", Cost: 0}); !errors.Is(err, ErrInvalidReward) {
		t.Errorf("zero cost err = %v, want ErrInvalidReward", err)
	}

	r, err := svc.CreateReward(ctx, RewardInput{Title: "Tote Bag", Cost: 3, Stock: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Active {
		t.Error("new rewards should default to active")
	}

	off := false
	updated, err := svc.UpdateReward(ctx, r.ID, RewardInput{Title: "Tote Bag", Cost: 4, Stock: 0, Active: &off})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Cost != 4 || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := svc.UpdateReward(ctx, "missing", RewardInput{Title: "x", Cost: 1}); !errors.Is(err, ErrRewardNotFound) {
		t.Errorf("missing update err = %v, want ErrRewardNotFound", err)
	}

	active, _ := svc.Rewards(ctx)
	if len(active) != 0 {
		t.Errorf("active rewards = %d, want 0", len(active))
	}
	all, _ := svc.AllRewards(ctx)
	if len(all) != 1 {
		t.Errorf("all rewards = %d, want 1", len(all))
	}
}
