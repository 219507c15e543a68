package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/muflih795/YBG-Database-3/internal/auth"
	"github.com/muflih795/YBG-Database-3/internal/ledger"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
)

type PointsHandler struct {
	svc    *loyalty.Service
	logger *slog.Logger
}

func NewPointsHandler(svc *loyalty.Service, logger *slog.Logger) *PointsHandler {
	return &PointsHandler{svc: svc, logger: logger.With("component", "points")}
}

// Balance answers {"points": n}. Anonymous callers and read failures get 0.
func (h *PointsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusOK, map[string]int64{"points": 0})
		return
	}
	points, err := h.svc.Balance(r.Context(), uid)
	if err != nil {
		h.logger.Error("read balance", "user_id", uid, "error", err)
		points = 0
	}
	writeJSON(w, http.StatusOK, map[string]int64{"points": points})
}

func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusOK, []ledger.Entry{})
		return
	}
	entries, err := h.svc.History(r.Context(), uid)
	if err != nil {
		h.logger.Error("read history", "user_id", uid, "error", err)
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Earn accepts {"amount": n, "description": "..."}; "delta" and "reason"
// are accepted as aliases. A missing amount earns 1 point.
func (h *PointsHandler) Earn(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, loyalty.ErrUnauthenticated.Error())
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	amount, err := amountField(body, 1, "amount", "delta")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason := stringField(body, "description", "reason")

	record, points, err := h.svc.Earn(r.Context(), uid, amount, reason)
	switch {
	case errors.Is(err, loyalty.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("earn points", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "could not record points")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"points": points,
		"record": ledger.NewEntry(record, record.CreatedAt),
	})
}

func (h *PointsHandler) Membership(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeError(w, http.StatusUnauthorized, loyalty.ErrUnauthenticated.Error())
		return
	}
	m, err := h.svc.Membership(r.Context(), uid)
	if err != nil {
		h.logger.Error("read membership", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load membership")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
