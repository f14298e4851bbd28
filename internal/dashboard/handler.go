// Package dashboard serves the account-facing read endpoints: profile
// with live coin balance and the coin journal.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskcoin/backend/internal/middleware"
	"github.com/taskcoin/backend/internal/models"
)

// AccountReader loads accounts for the profile endpoint.
type AccountReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// JournalReader lists coin journal entries for an account.
type JournalReader interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.CoinEntry, error)
}

type Handler struct {
	accounts AccountReader
	journal  JournalReader
	log      *slog.Logger
}

func NewHandler(accounts AccountReader, journal JournalReader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, journal: journal, log: log}
}

// GetMe handles GET /api/v1/account/me. The coin balance here is the
// authoritative one read from the account row, not a journal sum.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	acc, err := h.accounts.GetByID(r.Context(), id.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get account", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           acc.ID,
		"email":        acc.Email,
		"name":         acc.Name,
		"role":         acc.Role,
		"coin_balance": acc.CoinBalance,
		"created_at":   acc.CreatedAt,
	})
}

// ListCoinLedger handles GET /api/v1/coin-ledger — the caller's journal,
// newest first.
func (h *Handler) ListCoinLedger(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.journal.ListByAccount(r.Context(), id.AccountID)
	if err != nil {
		h.log.Error("list coin ledger", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CoinEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
