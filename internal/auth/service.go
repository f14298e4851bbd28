// Package auth issues and validates the identities the ledger trusts:
// registration, login and JWT verification for workers, buyers and admins.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskcoin/backend/internal/models"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that
	// already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRole is returned when registering with a role other than
	// worker or buyer. Admin accounts are provisioned out of band.
	ErrInvalidRole = errors.New("invalid role")
)

// AccountStore is the account access the auth service needs.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Service interface {
	Register(ctx context.Context, email, password, name, role string) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

type service struct {
	accounts AccountStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(accounts AccountStore, secret string) *service {
	return &service{accounts: accounts, secret: []byte(secret), tokenTTL: 24 * time.Hour}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register creates a worker or buyer account with a zero coin balance. The
// only supply-increasing path afterwards is a verified top-up.
func (s *service) Register(ctx context.Context, email, password, name, role string) (*models.Account, error) {
	if role != models.RoleWorker && role != models.RoleBuyer {
		return nil, ErrInvalidRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CoinBalance:  0,
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.ID, acc.Role)
}

func (s *service) issueToken(accountID uuid.UUID, role string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// ValidateToken returns the account id and role carried by a valid token.
func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, c.Role, nil
}
