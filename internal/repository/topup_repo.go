package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

// ErrDuplicateRef is returned when a top-up insert hits the unique
// external_ref constraint: the deposit was already applied.
var ErrDuplicateRef = errors.New("external reference already applied")

type TopUpRepo struct {
	pool *pgxpool.Pool
}

func NewTopUpRepo(pool *pgxpool.Pool) *TopUpRepo {
	return &TopUpRepo{pool: pool}
}

// CreateTx inserts the top-up record inside the caller's transaction. The
// unique index on external_ref is the idempotency barrier: a retried
// confirmation with the same reference fails here with ErrDuplicateRef
// before any balance change.
func (r *TopUpRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.TopUp) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO topups (id, account_id, cash_amount, coin_amount, external_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING recorded_at
	`, t.ID, t.AccountID, t.CashAmount, t.CoinAmount, t.ExternalRef).Scan(&t.RecordedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateRef
	}
	return err
}

func (r *TopUpRepo) GetByExternalRef(ctx context.Context, ref string) (*models.TopUp, error) {
	var t models.TopUp
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, cash_amount, coin_amount, external_ref, recorded_at
		FROM topups WHERE external_ref = $1
	`, ref).Scan(&t.ID, &t.AccountID, &t.CashAmount, &t.CoinAmount, &t.ExternalRef, &t.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TopUpRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.TopUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, cash_amount, coin_amount, external_ref, recorded_at
		FROM topups WHERE account_id = $1 ORDER BY recorded_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.TopUp
	for rows.Next() {
		var t models.TopUp
		if err := rows.Scan(&t.ID, &t.AccountID, &t.CashAmount, &t.CoinAmount, &t.ExternalRef, &t.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
