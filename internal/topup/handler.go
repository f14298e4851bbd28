package topup

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
)

type initiateDepositRequest struct {
	CashAmount  int64  `json:"cash_amount"`
	CoinAmount  int64  `json:"coin_amount"`
	ExternalRef string `json:"external_ref"`
}

type creditRequest struct {
	AccountID   string `json:"account_id"`
	CashAmount  int64  `json:"cash_amount"`
	CoinAmount  int64  `json:"coin_amount"`
	ExternalRef string `json:"external_ref"`
}

type creditResponse struct {
	TopUp          *models.TopUp `json:"topup"`
	AlreadyApplied bool          `json:"already_applied"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// InitiateDeposit handles POST /api/v1/topups: the caller claims a deposit
// and the confirmation worker verifies it with the gateway before any
// coins move.
func (h *Handler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req initiateDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if err := h.svc.InitiateDeposit(r.Context(), id.AccountID, req.CashAmount, req.CoinAmount, req.ExternalRef); err != nil {
		if errors.Is(err, ErrValidation) {
			http.Error(w, `{"error":"external_ref and positive amounts are required"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("initiate deposit", "error", err)
		http.Error(w, `{"error":"failed to initiate deposit"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "confirmation pending", "external_ref": req.ExternalRef})
}

// Credit handles POST /api/v1/topups/credit (admin role enforced by
// route): the direct webhook path for already-verified deposits. Retried
// confirmations return the prior result without crediting again.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		http.Error(w, `{"error":"invalid account_id"}`, http.StatusBadRequest)
		return
	}

	t, already, err := h.svc.Credit(r.Context(), accountID, req.CashAmount, req.CoinAmount, req.ExternalRef)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			http.Error(w, `{"error":"external_ref and positive amounts are required"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("credit top-up", "error", err)
		http.Error(w, `{"error":"failed to credit top-up"}`, http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if already {
		status = http.StatusOK
	}
	writeJSON(w, status, creditResponse{TopUp: t, AlreadyApplied: already})
}

// ListMine handles GET /api/v1/topups — the caller's applied deposits.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByAccount(r.Context(), id.AccountID)
	if err != nil {
		h.log.Error("list top-ups", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.TopUp{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
