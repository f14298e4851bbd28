package submission

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskcoin/backend/internal/ledger"
	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
)

type submitRequest struct {
	TaskID  string `json:"task_id"`
	Details string `json:"details"`
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

// Submit handles POST /api/v1/submissions (worker role enforced by route).
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		http.Error(w, `{"error":"invalid task_id"}`, http.StatusBadRequest)
		return
	}

	sub, err := h.svc.Submit(r.Context(), taskID, id.AccountID, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrTaskNotOpen):
			http.Error(w, `{"error":"task is not open for submissions"}`, http.StatusConflict)
		default:
			h.log.Error("submit work", "error", err)
			http.Error(w, `{"error":"failed to submit"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Approve handles POST /api/v1/submissions/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, models.SubmissionStatusApproved)
}

// Reject handles POST /api/v1/submissions/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, models.SubmissionStatusRejected)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, status string) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	subID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid submission id"}`, http.StatusBadRequest)
		return
	}

	var sub *models.Submission
	if status == models.SubmissionStatusApproved {
		sub, err = h.svc.Approve(r.Context(), subID, id.AccountID, id.Role)
	} else {
		sub, err = h.svc.Reject(r.Context(), subID, id.AccountID, id.Role)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"submission not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrNotReviewer):
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		case errors.Is(err, ErrAlreadyResolved):
			http.Error(w, `{"error":"submission already resolved"}`, http.StatusConflict)
		case errors.Is(err, ledger.ErrNoOpenSlots):
			http.Error(w, `{"error":"task has no open slots"}`, http.StatusConflict)
		default:
			h.log.Error("resolve submission", "status", status, "error", err)
			http.Error(w, `{"error":"failed to resolve submission"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// ListMine handles GET /api/v1/submissions — the caller's own submissions.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	subs, err := h.svc.ListByWorker(r.Context(), id.AccountID)
	if err != nil {
		h.log.Error("list submissions", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
