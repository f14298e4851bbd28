package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/topup"
)

type fakeGateway struct {
	cash int64
	err  error
}

func (f *fakeGateway) ConfirmDeposit(_ context.Context, _ string) (int64, error) {
	return f.cash, f.err
}

type creditCall struct {
	accountID   uuid.UUID
	cashAmount  int64
	coinAmount  int64
	externalRef string
}

type fakeCreditor struct {
	calls   []creditCall
	already bool
	err     error
}

func (f *fakeCreditor) Credit(_ context.Context, accountID uuid.UUID, cashAmount, coinAmount int64, externalRef string) (*models.TopUp, bool, error) {
	f.calls = append(f.calls, creditCall{accountID, cashAmount, coinAmount, externalRef})
	if f.err != nil {
		return nil, false, f.err
	}
	return &models.TopUp{ID: uuid.New(), AccountID: accountID, CoinAmount: coinAmount}, f.already, nil
}

func confirmJob(args topup.ConfirmDepositArgs) *river.Job[topup.ConfirmDepositArgs] {
	return &river.Job[topup.ConfirmDepositArgs]{Args: args}
}

func TestConfirmDepositWorker(t *testing.T) {
	account := uuid.New()
	args := topup.ConfirmDepositArgs{
		AccountID:   account,
		CashAmount:  500,
		CoinAmount:  5000,
		ExternalRef: "pay_abc123",
	}

	creditor := &fakeCreditor{}
	w := NewConfirmDepositWorker(&fakeGateway{cash: 500}, creditor, nil)

	err := w.Work(context.Background(), confirmJob(args))
	require.NoError(t, err)

	require.Len(t, creditor.calls, 1)
	assert.Equal(t, creditCall{account, 500, 5000, "pay_abc123"}, creditor.calls[0])
}

func TestConfirmDepositWorker_NotCaptured(t *testing.T) {
	creditor := &fakeCreditor{}
	w := NewConfirmDepositWorker(&fakeGateway{err: ErrNotCaptured}, creditor, nil)

	err := w.Work(context.Background(), confirmJob(topup.ConfirmDepositArgs{ExternalRef: "pay_x", CashAmount: 1, CoinAmount: 1}))

	// The error propagates so river retries; nothing is credited yet.
	require.ErrorIs(t, err, ErrNotCaptured)
	assert.Empty(t, creditor.calls)
}

func TestConfirmDepositWorker_AlreadyCredited(t *testing.T) {
	creditor := &fakeCreditor{already: true}
	w := NewConfirmDepositWorker(&fakeGateway{cash: 500}, creditor, nil)

	err := w.Work(context.Background(), confirmJob(topup.ConfirmDepositArgs{
		AccountID: uuid.New(), CashAmount: 500, CoinAmount: 5000, ExternalRef: "pay_abc123",
	}))
	require.NoError(t, err)
	assert.Len(t, creditor.calls, 1)
}
