package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

// ErrNoOpenSlots is returned when a slot consume finds the task without an
// open slot or no longer open.
var ErrNoOpenSlots = errors.New("no open slots")

// ErrTaskNotOpen is returned when a conditional task transition requires
// status = open and the task has already left it.
var ErrTaskNotOpen = errors.New("task is not open")

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// CreateTx inserts the task inside the caller's transaction so the escrow
// debit and the insert commit together.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.BuyerID, t.Title, t.Detail, t.PayablePerWorker, t.OpenSlots, t.Status).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status, created_at, updated_at
		FROM tasks WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the task row. Call within a transaction.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `
		SELECT id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status, created_at, updated_at
		FROM tasks WHERE id = $1 FOR UPDATE
	`, id))
}

func (r *TaskRepo) ListOpen(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status, created_at, updated_at
		FROM tasks WHERE status = 'open' AND open_slots > 0 ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ConsumeSlot decrements open_slots by one and flips the task to completed
// when the last slot is taken, all in a single conditional statement. Zero
// rows affected means the task was not open or had no slot left.
func (r *TaskRepo) ConsumeSlot(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks
		SET open_slots = open_slots - 1,
		    status = CASE WHEN open_slots = 1 THEN 'completed' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'open' AND open_slots > 0
		RETURNING id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status, created_at, updated_at
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenSlots
	}
	return t, err
}

// Cancel flips an open task to cancelled, freezing open_slots at its
// current value for audit. Zero rows affected means the task already left
// the open state.
func (r *TaskRepo) Cancel(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(tx.QueryRow(ctx, `
		UPDATE tasks SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'open'
		RETURNING id, buyer_id, title, detail, payable_per_worker, slot_count, open_slots, status, created_at, updated_at
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotOpen
	}
	return t, err
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.BuyerID, &t.Title, &t.Detail, &t.PayablePerWorker, &t.SlotCount, &t.OpenSlots, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
