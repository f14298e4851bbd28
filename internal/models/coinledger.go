package models

import (
	"time"

	"github.com/google/uuid"
)

// Coin journal entry_type enums. Every balance-affecting operation appends
// one entry per touched account in the same transaction.
const (
	CoinEntryEscrowLock     = "escrow_lock"     // buyer debit when a task is funded
	CoinEntryEscrowRelease  = "escrow_release"  // buyer refund (reject / cancel)
	CoinEntryTaskEarning    = "task_earning"    // worker credit on approval
	CoinEntryWithdrawalHold = "withdrawal_hold" // worker debit at request time
	CoinEntryTopUp          = "topup"           // deposit credit
)

// SignedAmount returns the delta an entry represents for its account:
// debits negative, credits positive.
func (e *CoinEntry) SignedAmount() int64 {
	switch e.EntryType {
	case CoinEntryEscrowLock, CoinEntryWithdrawalHold:
		return -e.Amount
	default:
		return e.Amount
	}
}

type CoinEntry struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int64      `json:"amount"`
	BalanceAfter *int64     `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
