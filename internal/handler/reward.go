package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/muflih795/YBG-Database-3/internal/auth"
	"github.com/muflih795/YBG-Database-3/internal/handoff"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
	"github.com/muflih795/YBG-Database-3/internal/model"
)

type RewardHandler struct {
	svc    *loyalty.Service
	linker *handoff.Linker
	logger *slog.Logger
}

// NewRewardHandler takes a nil linker when no WhatsApp number is set; the
// send endpoint then returns an empty whatsapp_url.
func NewRewardHandler(svc *loyalty.Service, linker *handoff.Linker, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{svc: svc, linker: linker, logger: logger.With("component", "rewards")}
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.Rewards(r.Context())
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		rewards = nil
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func claimStatus(err error) int {
	switch {
	case errors.Is(err, loyalty.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, loyalty.ErrRewardNotFound):
		return http.StatusNotFound
	case errors.Is(err, loyalty.ErrRewardInactive),
		errors.Is(err, loyalty.ErrInvalidRewardConfig),
		errors.Is(err, loyalty.ErrOutOfStock),
		errors.Is(err, loyalty.ErrInsufficientPoints):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Claim redeems one unit of {"rewardId": "..."} ("reward_id" also works).
func (h *RewardHandler) Claim(w http.ResponseWriter, r *http.Request) {
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
	rewardID := stringField(body, "rewardId", "reward_id")
	if rewardID == "" {
		writeError(w, http.StatusBadRequest, "rewardId is required")
		return
	}

	res, err := h.svc.Redeem(r.Context(), uid, rewardID)
	if err != nil {
		status := claimStatus(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = loyalty.ErrStoreWriteFailed.Error()
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"voucherCode":     res.VoucherCode,
		"remainingPoints": res.RemainingPoints,
		"claim":           newClaimView(res.Claim),
	})
}

// claimView adds the display names the rewards page renders.
type claimView struct {
	model.RewardClaim
	RewardTitle    string `json:"reward_title"`
	RewardImageURL string `json:"reward_image_url"`
}

func newClaimView(c model.RewardClaim) claimView {
	return claimView{RewardClaim: c, RewardTitle: c.Title, RewardImageURL: c.ImageURL}
}

func (h *RewardHandler) Claimed(w http.ResponseWriter, r *http.Request) {
	views := []claimView{}
	uid := auth.UserID(r.Context())
	if uid == "" {
		writeJSON(w, http.StatusOK, views)
		return
	}
	claims, err := h.svc.Claims(r.Context(), uid)
	if err != nil {
		h.logger.Error("list claims", "user_id", uid, "error", err)
		writeJSON(w, http.StatusOK, views)
		return
	}
	for _, c := range claims {
		views = append(views, newClaimView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// Send marks {"claimId": "..."} as handed off and returns the WhatsApp link
// prefilled with the caller's details.
func (h *RewardHandler) Send(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.UserID == "" {
		writeError(w, http.StatusUnauthorized, loyalty.ErrUnauthenticated.Error())
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	claimID := stringField(body, "claimId", "claim_id")
	if claimID == "" {
		writeError(w, http.StatusBadRequest, "claimId is required")
		return
	}

	claim, err := h.svc.MarkSent(r.Context(), ac.UserID, claimID)
	switch {
	case errors.Is(err, loyalty.ErrClaimNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("mark claim sent", "user_id", ac.UserID, "claim_id", claimID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update claim")
		return
	}

	link := h.linker.Link(handoff.Request{
		Name:    ac.Name,
		Email:   ac.Email,
		Item:    claim.Title,
		Voucher: claim.VoucherCode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"claim":        newClaimView(claim),
		"whatsapp_url": link,
	})
}
