package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

type CoinLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewCoinLedgerRepo(pool *pgxpool.Pool) *CoinLedgerRepo {
	return &CoinLedgerRepo{pool: pool}
}

// CreateTx appends a journal entry inside the given transaction.
func (r *CoinLedgerRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.CoinEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coin_ledger (id, account_id, task_id, entry_type, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountID, e.TaskID, e.EntryType, e.Amount, e.BalanceAfter).Scan(&e.CreatedAt)
}

func (r *CoinLedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.CoinEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, task_id, entry_type, amount, balance_after, created_at
		FROM coin_ledger WHERE account_id = $1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CoinEntry
	for rows.Next() {
		var e models.CoinEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TaskID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
