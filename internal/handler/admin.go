package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muflih795/YBG-Database-3/internal/backup"
	"github.com/muflih795/YBG-Database-3/internal/loyalty"
	"github.com/muflih795/YBG-Database-3/internal/model"
)

type AdminHandler struct {
	svc     *loyalty.Service
	backups *backup.Manager
	logger  *slog.Logger
}

// NewAdminHandler accepts a nil backup manager when the ledger is not on
// SQLite.
func NewAdminHandler(svc *loyalty.Service, backups *backup.Manager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, backups: backups, logger: logger.With("component", "admin")}
}

func (h *AdminHandler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.AllRewards(r.Context())
	if err != nil {
		h.logger.Error("list all rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func decodeRewardInput(r *http.Request) (loyalty.RewardInput, error) {
	var in loyalty.RewardInput
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in); err != nil {
		return in, err
	}
	return in, nil
}

func (h *AdminHandler) CreateReward(w http.ResponseWriter, r *http.Request) {
	in, err := decodeRewardInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	reward, err := h.svc.CreateReward(r.Context(), in)
	switch {
	case errors.Is(err, loyalty.ErrInvalidReward):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create reward")
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *AdminHandler) UpdateReward(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, err := decodeRewardInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	reward, err := h.svc.UpdateReward(r.Context(), id, in)
	switch {
	case errors.Is(err, loyalty.ErrInvalidReward):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, loyalty.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("update reward", "reward_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update reward")
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusNotFound, backup.ErrDisabled.Error())
		return
	}
	list, err := h.backups.List(r.Context(), 50)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.backups.Status(),
		"backups": list,
	})
}

func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		writeError(w, http.StatusNotFound, backup.ErrDisabled.Error())
		return
	}
	b, err := h.backups.RunNow(r.Context())
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, backup.ErrInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusOK, b)
}
