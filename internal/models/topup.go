package models

import (
	"time"

	"github.com/google/uuid"
)

// TopUp is an append-only record of an externally verified cash deposit.
// ExternalRef is unique: a retried payment confirmation with the same
// reference must not credit the account twice.
type TopUp struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	CashAmount  int64     `json:"cash_amount"`
	CoinAmount  int64     `json:"coin_amount"`
	ExternalRef string    `json:"external_ref"`
	RecordedAt  time.Time `json:"recorded_at"`
}
