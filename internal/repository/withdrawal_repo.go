package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

type WithdrawalRepo struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepo(pool *pgxpool.Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// CreateTx inserts the withdrawal inside the caller's transaction so the
// coin debit and the pending record commit together.
func (r *WithdrawalRepo) CreateTx(ctx context.Context, tx pgx.Tx, w *models.Withdrawal) error {
	return tx.QueryRow(ctx, `
		INSERT INTO withdrawals (id, worker_id, coin_amount, cash_amount, payout_details, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING requested_at
	`, w.ID, w.WorkerID, w.CoinAmount, w.CashAmount, w.PayoutDetails, w.Status).Scan(&w.RequestedAt)
}

func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return scanWithdrawal(r.pool.QueryRow(ctx, `
		SELECT id, worker_id, coin_amount, cash_amount, payout_details, status, requested_at, approved_at
		FROM withdrawals WHERE id = $1
	`, id))
}

// Approve flips a pending withdrawal to approved. It performs no balance
// mutation: the coins were debited when the request was created. Zero rows
// affected means the withdrawal was already approved.
func (r *WithdrawalRepo) Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `
		UPDATE withdrawals SET status = 'approved', approved_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, worker_id, coin_amount, cash_amount, payout_details, status, requested_at, approved_at
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotPending
	}
	return w, err
}

func (r *WithdrawalRepo) ListPending(ctx context.Context) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, worker_id, coin_amount, cash_amount, payout_details, status, requested_at, approved_at
		FROM withdrawals WHERE status = 'pending' ORDER BY requested_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

func (r *WithdrawalRepo) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, worker_id, coin_amount, cash_amount, payout_details, status, requested_at, approved_at
		FROM withdrawals WHERE worker_id = $1 ORDER BY requested_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(&w.ID, &w.WorkerID, &w.CoinAmount, &w.CashAmount, &w.PayoutDetails, &w.Status, &w.RequestedAt, &w.ApprovedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
