package models

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleWorker = "worker"
	RoleBuyer  = "buyer"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is one of the platform roles.
func ValidRole(role string) bool {
	return role == RoleWorker || role == RoleBuyer || role == RoleAdmin
}

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CoinBalance  int64     `json:"coin_balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
