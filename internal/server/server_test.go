package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/auth"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
	"github.com/muflih795/YBG-Database-3/internal/metrics"
	"github.com/muflih795/YBG-Database-3/internal/model"
	"github.com/muflih795/YBG-Database-3/internal/store"
	"github.com/muflih795/YBG-Database-3/internal/tier"
	ws "github.com/muflih795/YBG-Database-3/internal/websocket"
)

type stubVerifier map[string]auth.AuthContext

func (s stubVerifier) Verify(raw string) (auth.AuthContext, error) {
	if ac, ok := s[raw]; ok {
		return ac, nil
	}
	return auth.AuthContext{}, auth.ErrInvalidToken
}

func setupServer(t *testing.T, ping func(context.Context) error) http.Handler {
	t.Helper()
	st := store.NewMemory()
	r := model.Reward{ID: "wallet", Title: "Mini City Wallet", Cost: 100, Stock: 5, Active: true, CreatedAt: time.Now()}
	if err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateReward(context.Background(), &r)
	}); err != nil {
		t.Fatal(err)
	}

	tiers, _ := tier.New(tier.Default)
	m := metrics.New()
	svc := loyalty.NewService(st, tiers, slog.Default(), loyalty.WithMetrics(m))
	srv := New(Options{
		Service: svc,
		Verifier: stubVerifier{
			"member": {UserID: "u1"},
			"admin":  {Role: auth.RoleAdmin},
		},
		Hub:           ws.NewHub(slog.Default()),
		Metrics:       m,
		Ping:          ping,
		SessionCookie: "sb-access-token",
	}, slog.Default())
	return srv.Router()
}

func do(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := setupServer(t, func(context.Context) error { return nil })
	if rec := do(h, "GET", "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	down := setupServer(t, func(context.Context) error { return errors.New("db gone") })
	if rec := do(down, "GET", "/health", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRoutesAuth(t *testing.T) {
	h := setupServer(t, nil)

	tests := []struct {
		method, path, token string
		want                int
	}{
		{"GET", "/points", "", http.StatusOK},
		{"GET", "/rewards", "", http.StatusOK},
		{"POST", "/points/earn", "", http.StatusUnauthorized},
		{"POST", "/rewards/claim", "", http.StatusUnauthorized},
		{"GET", "/membership", "member", http.StatusOK},
		{"GET", "/admin/rewards", "", http.StatusUnauthorized},
		{"GET", "/admin/rewards", "member", http.StatusForbidden},
		{"GET", "/admin/rewards", "admin", http.StatusOK},
		{"POST", "/points/earn", "admin", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := do(h, tt.method, tt.path, tt.token, "{}")
		if rec.Code != tt.want {
			t.Errorf("%s %s (%q): status = %d, want %d", tt.method, tt.path, tt.token, rec.Code, tt.want)
		}
	}
}

func TestClaimRateLimit(t *testing.T) {
	h := setupServer(t, nil)

	for i := 0; i < claimLimit; i++ {
		rec := do(h, "POST", "/rewards/claim", "member", `{"rewardId": "wallet"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: status = %d, want 400 (insufficient)", i+1, rec.Code)
		}
	}
	if rec := do(h, "POST", "/rewards/claim", "member", `{"rewardId": "wallet"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupServer(t, nil)
	do(h, "POST", "/rewards/claim", "member", `{"rewardId": "wallet"}`)

	rec := do(h, "GET", "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ybg_redemptions_total") {
		t.Error("metrics output missing redemption counter")
	}
}
