// Package handlers serves the task endpoints: creating escrow-funded
// tasks, cancelling them and browsing open work.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskcoin/backend/internal/ledger"
	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
)

// LedgerService is the subset of the escrow ledger the handler needs.
type LedgerService interface {
	CreateTask(ctx context.Context, buyerID uuid.UUID, payablePerWorker int64, slotCount int, title, detail string) (*models.Task, error)
	CancelTask(ctx context.Context, taskID, requesterID uuid.UUID) (*models.Task, error)
	GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error)
	ListOpenTasks(ctx context.Context) ([]*models.Task, error)
}

// TaskHandler serves /api/v1/tasks endpoints.
type TaskHandler struct {
	Ledger LedgerService
	Logger *slog.Logger
}

type createTaskRequest struct {
	Title            string `json:"title"`
	Detail           string `json:"detail"`
	PayablePerWorker int64  `json:"payable_per_worker"`
	SlotCount        int    `json:"slot_count"`
}

// CreateTask handles POST /api/v1/tasks. The buyer role is enforced by the
// route; the ledger debits the escrow and opens the task atomically.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if req.PayablePerWorker <= 0 || req.SlotCount <= 0 {
		http.Error(w, `{"error":"payable_per_worker and slot_count must be > 0"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Ledger.CreateTask(r.Context(), id.AccountID, req.PayablePerWorker, req.SlotCount, req.Title, req.Detail)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			http.Error(w, `{"error":"insufficient balance"}`, http.StatusPaymentRequired)
		case errors.Is(err, ledger.ErrValidation):
			http.Error(w, `{"error":"invalid task parameters"}`, http.StatusBadRequest)
		default:
			h.Logger.Error("create task", "error", err)
			http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// CancelTask handles POST /api/v1/tasks/{id}/cancel. Only the owning buyer
// may cancel, and only while the task is open; remaining escrow is
// refunded.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.Ledger.CancelTask(r.Context(), taskID, id.AccountID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTaskNotFound):
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		case errors.Is(err, ledger.ErrNotOwner):
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		case errors.Is(err, ledger.ErrTaskNotOpen):
			http.Error(w, `{"error":"task is not open"}`, http.StatusConflict)
		default:
			h.Logger.Error("cancel task", "error", err)
			http.Error(w, `{"error":"failed to cancel task"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}
	task, err := h.Ledger.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, ledger.ErrTaskNotFound) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.Logger.Error("get task", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListOpenTasks handles GET /api/v1/tasks — tasks still accepting work.
func (h *TaskHandler) ListOpenTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Ledger.ListOpenTasks(r.Context())
	if err != nil {
		h.Logger.Error("list open tasks", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
