package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcoin/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) Create(ctx context.Context, a *models.Account) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name, password_hash, role, coin_balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, a.ID, a.Email, a.Name, a.PasswordHash, a.Role, a.CoinBalance).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, coin_balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.CoinBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, coin_balance, created_at, updated_at
		FROM accounts WHERE email = $1
	`, email).Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &a.CoinBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeductCoins atomically debits the account if the balance covers the
// amount. The balance check and the update are a single statement so two
// concurrent debits can never both pass a stale check. Returns
// ErrInsufficientBalance when the condition fails.
func (r *AccountRepo) DeductCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coin_balance = coin_balance - $1, updated_at = now()
		WHERE id = $2 AND coin_balance >= $1
		RETURNING coin_balance
	`, amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientBalance
	}
	return newBalance, err
}

// AddCoins credits the account and returns the new balance.
func (r *AccountRepo) AddCoins(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET coin_balance = coin_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING coin_balance
	`, amount, id).Scan(&newBalance)
	return newBalance, err
}
