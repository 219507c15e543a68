package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/model"
)

// Memory is an in-process Store for tests and local development.
// Transactions run one at a time against a copy of the state, which is
// swapped in only when fn succeeds.
type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	rewards map[string]model.Reward
	ledger  map[string][]model.PointTransaction
	claims  map[string]model.RewardClaim
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		rewards: make(map[string]model.Reward),
		ledger:  make(map[string][]model.PointTransaction),
		claims:  make(map[string]model.RewardClaim),
	}}
}

func (s *memState) clone() *memState {
	out := &memState{
		rewards: make(map[string]model.Reward, len(s.rewards)),
		ledger:  make(map[string][]model.PointTransaction, len(s.ledger)),
		claims:  make(map[string]model.RewardClaim, len(s.claims)),
	}
	for k, v := range s.rewards {
		out.rewards[k] = v
	}
	for k, v := range s.ledger {
		out.ledger[k] = append([]model.PointTransaction(nil), v...)
	}
	for k, v := range s.claims {
		out.claims[k] = v
	}
	return out
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{memReader{work}}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) read() memReader {
	return memReader{m.state}
}

func (m *Memory) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetReward(ctx, id)
}

func (m *Memory) ListActiveRewards(ctx context.Context) ([]model.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListActiveRewards(ctx)
}

func (m *Memory) ListRewards(ctx context.Context) ([]model.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListRewards(ctx)
}

func (m *Memory) ListTransactions(ctx context.Context, userID string) ([]model.PointTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListTransactions(ctx, userID)
}

func (m *Memory) ListClaims(ctx context.Context, userID string) ([]model.RewardClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListClaims(ctx, userID)
}

func (m *Memory) GetClaim(ctx context.Context, id string) (*model.RewardClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetClaim(ctx, id)
}

// memReader reads from one snapshot. Callers hold the lock.
type memReader struct {
	s *memState
}

func (r memReader) GetReward(_ context.Context, id string) (*model.Reward, error) {
	rw, ok := r.s.rewards[id]
	if !ok {
		return nil, nil
	}
	return &rw, nil
}

func (r memReader) ListActiveRewards(ctx context.Context) ([]model.Reward, error) {
	all, _ := r.ListRewards(ctx)
	out := []model.Reward{}
	for _, rw := range all {
		if rw.Active {
			out = append(out, rw)
		}
	}
	return out, nil
}

func (r memReader) ListRewards(_ context.Context) ([]model.Reward, error) {
	out := make([]model.Reward, 0, len(r.s.rewards))
	for _, rw := range r.s.rewards {
		out = append(out, rw)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memReader) ListTransactions(_ context.Context, userID string) ([]model.PointTransaction, error) {
	out := append([]model.PointTransaction{}, r.s.ledger[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r memReader) ListClaims(_ context.Context, userID string) ([]model.RewardClaim, error) {
	out := []model.RewardClaim{}
	for _, c := range r.s.claims {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memReader) GetClaim(_ context.Context, id string) (*model.RewardClaim, error) {
	c, ok := r.s.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type memTx struct {
	memReader
}

// LockUser is a no-op: WithTx already holds the store lock.
func (t *memTx) LockUser(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (t *memTx) DecrementStock(_ context.Context, rewardID string) (bool, error) {
	rw, ok := t.s.rewards[rewardID]
	if !ok || rw.Stock <= 0 {
		return false, nil
	}
	rw.Stock--
	t.s.rewards[rewardID] = rw
	return true, nil
}

func (t *memTx) VoucherExists(_ context.Context, code string) (bool, error) {
	for _, c := range t.s.claims {
		if c.VoucherCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertClaim(ctx context.Context, c *model.RewardClaim) error {
	taken, _ := t.VoucherExists(ctx, c.VoucherCode)
	if taken {
		return ErrVoucherTaken
	}
	t.s.claims[c.ID] = *c
	return nil
}

func (t *memTx) InsertTransaction(_ context.Context, pt *model.PointTransaction) error {
	t.s.ledger[pt.UserID] = append(t.s.ledger[pt.UserID], *pt)
	return nil
}

func (t *memTx) MarkClaimSent(_ context.Context, claimID, userID string, at time.Time) (bool, error) {
	c, ok := t.s.claims[claimID]
	if !ok || c.UserID != userID {
		return false, nil
	}
	if !c.SentToSA {
		c.SentToSA = true
		c.SentToSAAt = &at
		t.s.claims[claimID] = c
	}
	return true, nil
}

func (t *memTx) CreateReward(_ context.Context, r *model.Reward) error {
	t.s.rewards[r.ID] = *r
	return nil
}

func (t *memTx) UpdateReward(_ context.Context, r *model.Reward) (bool, error) {
	existing, ok := t.s.rewards[r.ID]
	if !ok {
		return false, nil
	}
	updated := *r
	updated.CreatedAt = existing.CreatedAt
	t.s.rewards[r.ID] = updated
	return true, nil
}
