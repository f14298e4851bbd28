package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/topup"
)

// DepositConfirmer verifies a deposit with the gateway.
type DepositConfirmer interface {
	ConfirmDeposit(ctx context.Context, externalRef string) (int64, error)
}

// Creditor applies a confirmed deposit to the account balance.
type Creditor interface {
	Credit(ctx context.Context, accountID uuid.UUID, cashAmount, coinAmount int64, externalRef string) (*models.TopUp, bool, error)
}

// ConfirmDepositWorker processes queued deposit confirmations: it asks the
// gateway whether the deposit was captured and, if so, credits the account.
// The credit is idempotent on the external reference, so at-least-once job
// delivery cannot double-credit.
type ConfirmDepositWorker struct {
	river.WorkerDefaults[topup.ConfirmDepositArgs]
	gateway DepositConfirmer
	topups  Creditor
	log     *slog.Logger
}

func NewConfirmDepositWorker(gateway DepositConfirmer, topups Creditor, log *slog.Logger) *ConfirmDepositWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ConfirmDepositWorker{gateway: gateway, topups: topups, log: log}
}

func (w *ConfirmDepositWorker) Work(ctx context.Context, job *river.Job[topup.ConfirmDepositArgs]) error {
	args := job.Args

	capturedCash, err := w.gateway.ConfirmDeposit(ctx, args.ExternalRef)
	if err != nil {
		// Pending captures and gateway outages look the same here; river
		// retries with backoff either way.
		return fmt.Errorf("confirm deposit %s: %w", args.ExternalRef, err)
	}
	if capturedCash != args.CashAmount {
		w.log.Warn("captured amount differs from claimed deposit",
			"external_ref", args.ExternalRef, "claimed", args.CashAmount, "captured", capturedCash)
	}

	t, already, err := w.topups.Credit(ctx, args.AccountID, capturedCash, args.CoinAmount, args.ExternalRef)
	if err != nil {
		return fmt.Errorf("credit top-up %s: %w", args.ExternalRef, err)
	}
	if already {
		w.log.Info("deposit already credited", "external_ref", args.ExternalRef, "topup_id", t.ID)
		return nil
	}
	w.log.Info("deposit credited", "external_ref", args.ExternalRef, "topup_id", t.ID, "coins", t.CoinAmount)
	return nil
}
