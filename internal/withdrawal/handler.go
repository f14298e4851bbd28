package withdrawal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
)

type requestWithdrawalRequest struct {
	CoinAmount    int64  `json:"coin_amount"`
	CashAmount    int64  `json:"cash_amount"`
	PayoutDetails string `json:"payout_details"`
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

// Request handles POST /api/v1/withdrawals (worker role enforced by
// route). Coins are debited here, not at approval.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req requestWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	wd, err := h.svc.Request(r.Context(), id.AccountID, req.CoinAmount, req.CashAmount, req.PayoutDetails)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			http.Error(w, `{"error":"amounts must be > 0"}`, http.StatusBadRequest)
		case errors.Is(err, ErrBelowMinimum):
			http.Error(w, `{"error":"coin amount below minimum payout"}`, http.StatusBadRequest)
		case errors.Is(err, ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
		default:
			h.log.Error("request withdrawal", "error", err)
			http.Error(w, `{"error":"failed to request withdrawal"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// Approve handles POST /api/v1/withdrawals/{id}/approve (admin role
// enforced by route). No balance change happens here.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	wdID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid withdrawal id"}`, http.StatusBadRequest)
		return
	}

	wd, err := h.svc.Approve(r.Context(), wdID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"withdrawal not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrAlreadyApproved):
			http.Error(w, `{"error":"withdrawal already approved"}`, http.StatusConflict)
		default:
			h.log.Error("approve withdrawal", "error", err)
			http.Error(w, `{"error":"failed to approve withdrawal"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// ListPending handles GET /api/v1/withdrawals/pending (admin role enforced
// by route).
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListPending(r.Context())
	if err != nil {
		h.log.Error("list pending withdrawals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMine handles GET /api/v1/withdrawals — the caller's history.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListByWorker(r.Context(), id.AccountID)
	if err != nil {
		h.log.Error("list withdrawals", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
