// Package topup credits externally verified cash deposits to coin
// balances. It is the only path that increases platform-wide coin supply,
// so every credit is idempotent on the deposit's external reference.
package topup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskcoin/backend/internal/ledger"
	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/repository"
)

// ErrValidation is returned for missing references or non-positive amounts.
var ErrValidation = errors.New("invalid top-up parameters")

// TopUpStore is the minimal top-up access the service needs.
type TopUpStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.TopUp) error
	GetByExternalRef(ctx context.Context, ref string) (*models.TopUp, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.TopUp, error)
}

// EnqueueConfirmTxFunc enqueues a deposit confirmation job within the given
// transaction. Provided by main using river.Client.InsertTx.
type EnqueueConfirmTxFunc func(ctx context.Context, tx pgx.Tx, args ConfirmDepositArgs) error

// ConfirmDepositArgs describes a deposit awaiting gateway confirmation.
// Defined here so the service can enqueue without importing the worker.
type ConfirmDepositArgs struct {
	AccountID   uuid.UUID `json:"account_id"`
	CashAmount  int64     `json:"cash_amount"`
	CoinAmount  int64     `json:"coin_amount"`
	ExternalRef string    `json:"external_ref"`
}

func (ConfirmDepositArgs) Kind() string { return "confirm_deposit" }

type Service struct {
	pool           ledger.TxBeginner
	accounts       ledger.AccountStore
	topups         TopUpStore
	journal        ledger.JournalStore
	enqueueConfirm EnqueueConfirmTxFunc
}

func NewService(pool ledger.TxBeginner, accounts ledger.AccountStore, topups TopUpStore, journal ledger.JournalStore, enqueueConfirm EnqueueConfirmTxFunc) *Service {
	return &Service{pool: pool, accounts: accounts, topups: topups, journal: journal, enqueueConfirm: enqueueConfirm}
}

// Credit applies a verified deposit: it inserts the top-up record and
// increments the account balance in one transaction. The unique
// external_ref constraint makes retries safe — if the reference was
// already applied the prior record is returned unchanged and the second
// return value is true.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, cashAmount, coinAmount int64, externalRef string) (*models.TopUp, bool, error) {
	if externalRef == "" || cashAmount <= 0 || coinAmount <= 0 {
		return nil, false, ErrValidation
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	t := &models.TopUp{
		ID:          uuid.New(),
		AccountID:   accountID,
		CashAmount:  cashAmount,
		CoinAmount:  coinAmount,
		ExternalRef: externalRef,
	}
	if err := s.topups.CreateTx(ctx, tx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicateRef) {
			prior, getErr := s.topups.GetByExternalRef(ctx, externalRef)
			if getErr != nil {
				return nil, false, fmt.Errorf("load prior top-up: %w", getErr)
			}
			return prior, true, nil
		}
		return nil, false, fmt.Errorf("insert top-up: %w", err)
	}

	newBalance, err := s.accounts.AddCoins(ctx, tx, accountID, coinAmount)
	if err != nil {
		return nil, false, fmt.Errorf("credit coins: %w", err)
	}
	if err := s.journal.CreateTx(ctx, tx, &models.CoinEntry{
		ID: uuid.New(), AccountID: accountID,
		EntryType: models.CoinEntryTopUp, Amount: coinAmount, BalanceAfter: &newBalance,
	}); err != nil {
		return nil, false, fmt.Errorf("journal top-up: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return t, false, nil
}

// InitiateDeposit enqueues gateway confirmation for a deposit the caller
// claims to have made. The job row is the durable intent; the confirmation
// worker performs the actual credit, and Credit's idempotency makes job
// retries safe.
func (s *Service) InitiateDeposit(ctx context.Context, accountID uuid.UUID, cashAmount, coinAmount int64, externalRef string) error {
	if externalRef == "" || cashAmount <= 0 || coinAmount <= 0 {
		return ErrValidation
	}
	if s.enqueueConfirm == nil {
		return errors.New("deposit confirmation queue not configured")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.enqueueConfirm(ctx, tx, ConfirmDepositArgs{
		AccountID:   accountID,
		CashAmount:  cashAmount,
		CoinAmount:  coinAmount,
		ExternalRef: externalRef,
	}); err != nil {
		return fmt.Errorf("enqueue confirmation: %w", err)
	}
	return tx.Commit(ctx)
}

// ListByAccount returns an account's applied top-ups, newest first.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.TopUp, error) {
	return s.topups.ListByAccount(ctx, accountID)
}
