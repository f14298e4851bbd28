// Package withdrawal converts worker coin balances into pending cash
// payouts. Coins are held at request time with a single conditional debit;
// admin approval records the off-platform payout and moves no coins.
package withdrawal

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

var (
	// ErrBelowMinimum is returned when the requested coin amount is under
	// the payout threshold.
	ErrBelowMinimum = errors.New("coin amount below minimum payout")
	// ErrInsufficientBalance is returned when the worker's balance does
	// not cover the request.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNotFound is returned when the withdrawal does not exist.
	ErrNotFound = errors.New("withdrawal not found")
	// ErrAlreadyApproved is returned when approving an already approved
	// withdrawal. The first approval stands; no balance change either way.
	ErrAlreadyApproved = errors.New("withdrawal already approved")
	// ErrValidation is returned for non-positive amounts.
	ErrValidation = errors.New("invalid withdrawal parameters")
)

// WithdrawalStore is the minimal withdrawal access the service needs.
type WithdrawalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListPending(ctx context.Context) ([]*models.Withdrawal, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error)
}

type Service struct {
	pool        ledger.TxBeginner
	accounts    ledger.AccountStore
	withdrawals WithdrawalStore
	journal     ledger.JournalStore
}

func NewService(pool ledger.TxBeginner, accounts ledger.AccountStore, withdrawals WithdrawalStore, journal ledger.JournalStore) *Service {
	return &Service{pool: pool, accounts: accounts, withdrawals: withdrawals, journal: journal}
}

// Request opens a pending withdrawal, debiting the worker's coins now.
// The balance check and the debit are one conditional statement, so two
// concurrent requests against the same balance cannot both succeed off a
// stale read.
func (s *Service) Request(ctx context.Context, workerID uuid.UUID, coinAmount, cashAmount int64, payoutDetails string) (*models.Withdrawal, error) {
	if coinAmount <= 0 || cashAmount <= 0 {
		return nil, ErrValidation
	}
	if coinAmount < models.MinWithdrawalCoins {
		return nil, ErrBelowMinimum
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.accounts.DeductCoins(ctx, tx, workerID, coinAmount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit coins: %w", err)
	}

	w := &models.Withdrawal{
		ID:            uuid.New(),
		WorkerID:      workerID,
		CoinAmount:    coinAmount,
		CashAmount:    cashAmount,
		PayoutDetails: payoutDetails,
		Status:        models.WithdrawalStatusPending,
	}
	if err := s.withdrawals.CreateTx(ctx, tx, w); err != nil {
		return nil, fmt.Errorf("insert withdrawal: %w", err)
	}

	if err := s.journal.CreateTx(ctx, tx, &models.CoinEntry{
		ID: uuid.New(), AccountID: workerID,
		EntryType: models.CoinEntryWithdrawalHold, Amount: coinAmount, BalanceAfter: &newBalance,
	}); err != nil {
		return nil, fmt.Errorf("journal withdrawal hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return w, nil
}

// Approve marks a pending withdrawal approved. The coins were already
// debited at request time; approval only records that the payout was made,
// so re-invoking it can never debit the worker again.
func (s *Service) Approve(ctx context.Context, withdrawalID uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.withdrawals.Approve(ctx, withdrawalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			if _, getErr := s.withdrawals.GetByID(ctx, withdrawalID); getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return nil, ErrNotFound
				}
				return nil, getErr
			}
			return nil, ErrAlreadyApproved
		}
		return nil, fmt.Errorf("approve withdrawal: %w", err)
	}
	return w, nil
}

// ListPending returns withdrawals awaiting admin approval, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*models.Withdrawal, error) {
	return s.withdrawals.ListPending(ctx)
}

// ListByWorker returns a worker's withdrawal history.
func (s *Service) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	return s.withdrawals.ListByWorker(ctx, workerID)
}
