package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcoin/backend/internal/models"
)

type mockAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*models.Account
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{byEmail: make(map[string]*models.Account)}
}

func (m *mockAccounts) Create(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[a.Email]; exists {
		return &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	}
	cp := *a
	m.byEmail[a.Email] = &cp
	return nil
}

func (m *mockAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func TestRegister(t *testing.T) {
	svc := NewService(newMockAccounts(), "test-secret")
	ctx := context.Background()

	acc, err := svc.Register(ctx, "worker@example.com", "hunter22", "Ada", models.RoleWorker)
	require.NoError(t, err)

	assert.Equal(t, models.RoleWorker, acc.Role)
	assert.Equal(t, int64(0), acc.CoinBalance, "new accounts start with no coins")
	assert.NotEqual(t, "hunter22", acc.PasswordHash)

	// Same email again.
	_, err = svc.Register(ctx, "worker@example.com", "other", "Eve", models.RoleWorker)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_RejectsAdmin(t *testing.T) {
	svc := NewService(newMockAccounts(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@example.com", "pw", "A", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Register(ctx, "a@example.com", "pw", "A", "superuser")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestLoginAndValidateToken(t *testing.T) {
	svc := NewService(newMockAccounts(), "test-secret")
	ctx := context.Background()

	acc, err := svc.Register(ctx, "buyer@example.com", "hunter22", "Bo", models.RoleBuyer)
	require.NoError(t, err)

	token, err := svc.Login(ctx, "buyer@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, role, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)
	assert.Equal(t, models.RoleBuyer, role)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := NewService(newMockAccounts(), "test-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "buyer@example.com", "hunter22", "Bo", models.RoleBuyer)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "buyer@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := NewService(newMockAccounts(), "test-secret")
	other := NewService(newMockAccounts(), "different-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "w@example.com", "pw", "W", models.RoleWorker)
	require.NoError(t, err)
	token, err := svc.Login(ctx, "w@example.com", "pw")
	require.NoError(t, err)

	_, _, err = other.ValidateToken(ctx, token)
	assert.Error(t, err, "token signed with another secret must not validate")

	_, _, err = svc.ValidateToken(ctx, "not-a-token")
	assert.Error(t, err)

	_, _, err = svc.ValidateToken(ctx, uuid.NewString())
	assert.Error(t, err)
}
