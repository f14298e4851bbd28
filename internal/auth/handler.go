package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskcoin/backend/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AccountResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	CoinBalance int64  `json:"coin_balance"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" || req.Role == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	acc, err := h.svc.Register(r.Context(), req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			http.Error(w, "email already registered", http.StatusConflict)
		case errors.Is(err, ErrInvalidRole):
			http.Error(w, "invalid role", http.StatusBadRequest)
		default:
			h.log.Error("register failed", "error", err)
			http.Error(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(accountToResponse(acc))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "missing email or password", http.StatusBadRequest)
		return
	}
	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.log.Error("login failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResponse{Token: token})
}

func accountToResponse(acc *models.Account) AccountResponse {
	return AccountResponse{
		ID:          acc.ID.String(),
		Email:       acc.Email,
		Name:        acc.Name,
		Role:        acc.Role,
		CoinBalance: acc.CoinBalance,
	}
}
