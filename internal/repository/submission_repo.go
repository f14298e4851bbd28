package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

// ErrNotPending is returned when a conditional status flip finds the row
// already resolved.
var ErrNotPending = errors.New("not in pending status")

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) Create(ctx context.Context, s *models.Submission) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO submissions (id, task_id, worker_id, details, status, payable_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING submitted_at
	`, s.ID, s.TaskID, s.WorkerID, s.Details, s.Status, s.PayableAmount).Scan(&s.SubmittedAt)
}

func (r *SubmissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx, `
		SELECT id, task_id, worker_id, details, status, payable_amount, submitted_at, resolved_at
		FROM submissions WHERE id = $1
	`, id))
}

// Resolve flips a pending submission to the given terminal status. The
// WHERE status = 'pending' guard makes a concurrent second resolution lose:
// exactly one caller sees the row, everyone else gets ErrNotPending.
func (r *SubmissionRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) (*models.Submission, error) {
	s, err := scanSubmission(tx.QueryRow(ctx, `
		UPDATE submissions SET status = $2, resolved_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, task_id, worker_id, details, status, payable_amount, submitted_at, resolved_at
	`, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotPending
	}
	return s, err
}

func (r *SubmissionRepo) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, worker_id, details, status, payable_amount, submitted_at, resolved_at
		FROM submissions WHERE worker_id = $1 ORDER BY submitted_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.Details, &s.Status, &s.PayableAmount, &s.SubmittedAt, &s.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
