// Package ledger owns task escrow: funding on creation, refund on
// cancellation and slot settlement on submission approval. Every balance
// move is a single conditional update paired with a coin journal entry in
// the same transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/repository"
)

var (
	// ErrInsufficientBalance is returned when the buyer cannot cover the
	// escrow for all requested slots.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTaskNotFound is returned when the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNotOwner is returned when a caller acts on a task it does not own.
	ErrNotOwner = errors.New("caller does not own the task")
	// ErrTaskNotOpen is returned when a transition requires an open task.
	ErrTaskNotOpen = errors.New("task is not open")
	// ErrNoOpenSlots is returned when a slot consume finds none left.
	ErrNoOpenSlots = errors.New("task has no open slots")
	// ErrValidation is returned for non-positive amounts or slot counts.
	ErrValidation = errors.New("invalid task parameters")
)

// AccountStore is the minimal account access the ledger needs. Both methods
// are atomic single-statement updates at the store.
type AccountStore interface {
	DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
	AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
}

// TaskStore is the minimal task access the ledger needs.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ConsumeSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	ListOpen(ctx context.Context) ([]*models.Task, error)
}

// JournalStore appends coin journal entries.
type JournalStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error
}

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the escrow ledger.
type Service struct {
	pool     TxBeginner
	accounts AccountStore
	tasks    TaskStore
	journal  JournalStore
}

func NewService(pool TxBeginner, accounts AccountStore, tasks TaskStore, journal JournalStore) *Service {
	return &Service{pool: pool, accounts: accounts, tasks: tasks, journal: journal}
}

// CreateTask debits the buyer slotCount * payablePerWorker coins and opens
// the task with that many slots. The debit and the insert share one
// transaction: either both happen or neither does.
func (s *Service) CreateTask(ctx context.Context, buyerID uuid.UUID, payablePerWorker int64, slotCount int, title, detail string) (*models.Task, error) {
	if payablePerWorker <= 0 || slotCount <= 0 {
		return nil, ErrValidation
	}
	if title == "" {
		return nil, ErrValidation
	}
	total := payablePerWorker * int64(slotCount)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	newBalance, err := s.accounts.DeductCoins(ctx, tx, buyerID, total)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit escrow: %w", err)
	}

	task := &models.Task{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		Title:            title,
		Detail:           detail,
		PayablePerWorker: payablePerWorker,
		SlotCount:        slotCount,
		OpenSlots:        slotCount,
		Status:           models.TaskStatusOpen,
	}
	if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := s.journal.CreateTx(ctx, tx, &models.CoinEntry{
		ID: uuid.New(), AccountID: buyerID, TaskID: &task.ID,
		EntryType: models.CoinEntryEscrowLock, Amount: total, BalanceAfter: &newBalance,
	}); err != nil {
		return nil, fmt.Errorf("journal escrow lock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

// CancelTask refunds open_slots * payable_per_worker to the owning buyer
// and freezes the task in the cancelled state. Only the owner may cancel,
// and only while the task is open.
func (s *Service) CancelTask(ctx context.Context, taskID, requesterID uuid.UUID) (*models.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	task, err := s.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task.BuyerID != requesterID {
		return nil, ErrNotOwner
	}

	task, err = s.tasks.Cancel(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotOpen) {
			return nil, ErrTaskNotOpen
		}
		return nil, fmt.Errorf("cancel task: %w", err)
	}

	refund := task.PayablePerWorker * int64(task.OpenSlots)
	if refund > 0 {
		newBalance, err := s.accounts.AddCoins(ctx, tx, task.BuyerID, refund)
		if err != nil {
			return nil, fmt.Errorf("refund escrow: %w", err)
		}
		if err := s.journal.CreateTx(ctx, tx, &models.CoinEntry{
			ID: uuid.New(), AccountID: task.BuyerID, TaskID: &task.ID,
			EntryType: models.CoinEntryEscrowRelease, Amount: refund, BalanceAfter: &newBalance,
		}); err != nil {
			return nil, fmt.Errorf("journal escrow release: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return task, nil
}

// SettleApproval releases one escrow slot to the worker: it consumes a slot
// (completing the task when the last one goes) and credits the worker the
// submission's snapshotted payable amount. Runs inside the caller's
// transaction so the submission status flip commits with it.
func (s *Service) SettleApproval(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID, amount int64) (*models.Task, error) {
	task, err := s.tasks.ConsumeSlot(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNoOpenSlots) {
			return nil, ErrNoOpenSlots
		}
		return nil, fmt.Errorf("consume slot: %w", err)
	}

	newBalance, err := s.accounts.AddCoins(ctx, tx, workerID, amount)
	if err != nil {
		return nil, fmt.Errorf("credit worker: %w", err)
	}
	if err := s.journal.CreateTx(ctx, tx, &models.CoinEntry{
		ID: uuid.New(), AccountID: workerID, TaskID: &task.ID,
		EntryType: models.CoinEntryTaskEarning, Amount: amount, BalanceAfter: &newBalance,
	}); err != nil {
		return nil, fmt.Errorf("journal earning: %w", err)
	}
	return task, nil
}

// GetTask returns a task by id.
func (s *Service) GetTask(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// ListOpenTasks returns tasks still accepting work.
func (s *Service) ListOpenTasks(ctx context.Context) ([]*models.Task, error) {
	return s.tasks.ListOpen(ctx)
}
