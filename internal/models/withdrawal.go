package models

import (
	"time"

	"github.com/google/uuid"
)

// Withdrawal status enums. approved is terminal; there is no reject path.
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
)

// MinWithdrawalCoins is the minimum payout threshold.
const MinWithdrawalCoins int64 = 200

type Withdrawal struct {
	ID            uuid.UUID  `json:"id"`
	WorkerID      uuid.UUID  `json:"worker_id"`
	CoinAmount    int64      `json:"coin_amount"`
	CashAmount    int64      `json:"cash_amount"`
	PayoutDetails string     `json:"payout_details"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
}
