// Package submission implements the review workflow for work submitted
// against a task: pending → approved or pending → rejected, both terminal.
package submission

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
	// ErrNotFound is returned when the submission or its task is absent.
	ErrNotFound = errors.New("submission not found")
	// ErrTaskNotOpen is returned when submitting against a task that is
	// no longer accepting work.
	ErrTaskNotOpen = errors.New("task is not open for submissions")
	// ErrAlreadyResolved is returned when approving or rejecting a
	// submission that already reached a terminal status. Safe to ignore:
	// the first resolution's effects stand, no duplicate credit occurs.
	ErrAlreadyResolved = errors.New("submission already resolved")
	// ErrNotReviewer is returned when the caller is neither the task's
	// buyer nor an admin.
	ErrNotReviewer = errors.New("caller may not review this submission")
)

// SubmissionStore is the minimal submission access the workflow needs.
type SubmissionStore interface {
	Create(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Submission, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error)
}

// TaskStore resolves and locks tasks during review.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
}

// Settler is the escrow operation approval triggers: consume one slot and
// credit the worker, inside the caller's transaction.
type Settler interface {
	SettleApproval(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID, amount int64) (*models.Task, error)
}

type Service struct {
	pool    ledger.TxBeginner
	subs    SubmissionStore
	tasks   TaskStore
	settler Settler
}

func NewService(pool ledger.TxBeginner, subs SubmissionStore, tasks TaskStore, settler Settler) *Service {
	return &Service{pool: pool, subs: subs, tasks: tasks, settler: settler}
}

// Submit records a pending submission. The payable amount is snapshotted
// from the task now so a later price edit cannot change what this work
// pays. No balance or slot changes happen here.
func (s *Service) Submit(ctx context.Context, taskID, workerID uuid.UUID, details string) (*models.Submission, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task.Status != models.TaskStatusOpen {
		return nil, ErrTaskNotOpen
	}

	sub := &models.Submission{
		ID:            uuid.New(),
		TaskID:        taskID,
		WorkerID:      workerID,
		Details:       details,
		Status:        models.SubmissionStatusPending,
		PayableAmount: task.PayablePerWorker,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// Approve resolves a pending submission in the worker's favor: the status
// flip, the slot consume and the worker credit commit in one transaction.
// The conditional flip on status = pending is the linearization point, so
// re-invoking on a resolved submission returns ErrAlreadyResolved and
// never credits twice.
func (s *Service) Approve(ctx context.Context, submissionID, reviewerID uuid.UUID, reviewerRole string) (*models.Submission, error) {
	return s.resolve(ctx, submissionID, reviewerID, reviewerRole, models.SubmissionStatusApproved)
}

// Reject resolves a pending submission against the worker. The slot was
// never consumed by the pending submission, so it stays claimable by other
// workers and the buyer's escrow stays with the task; only the status
// changes.
func (s *Service) Reject(ctx context.Context, submissionID, reviewerID uuid.UUID, reviewerRole string) (*models.Submission, error) {
	return s.resolve(ctx, submissionID, reviewerID, reviewerRole, models.SubmissionStatusRejected)
}

func (s *Service) resolve(ctx context.Context, submissionID, reviewerID uuid.UUID, reviewerRole, status string) (*models.Submission, error) {
	sub, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the task row first: resolution races against cancelTask and
	// against other resolutions on the same task serialize here.
	task, err := s.tasks.GetByIDForUpdate(ctx, tx, sub.TaskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock task: %w", err)
	}
	if reviewerRole != models.RoleAdmin && task.BuyerID != reviewerID {
		return nil, ErrNotReviewer
	}

	sub, err = s.subs.Resolve(ctx, tx, submissionID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, ErrAlreadyResolved
		}
		return nil, fmt.Errorf("resolve submission: %w", err)
	}

	if status == models.SubmissionStatusApproved {
		if _, err := s.settler.SettleApproval(ctx, tx, task.ID, sub.WorkerID, sub.PayableAmount); err != nil {
			return nil, fmt.Errorf("settle approval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sub, nil
}

// ListByWorker returns a worker's submissions, newest first.
func (s *Service) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error) {
	return s.subs.ListByWorker(ctx, workerID)
}
