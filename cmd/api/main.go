package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/taskcoin/backend/internal/auth"
	"github.com/taskcoin/backend/internal/config"
	"github.com/taskcoin/backend/internal/dashboard"
	"github.com/taskcoin/backend/internal/handlers"
	"github.com/taskcoin/backend/internal/ledger"
	"github.com/taskcoin/backend/internal/payment"
	"github.com/taskcoin/backend/internal/repository"
	"github.com/taskcoin/backend/internal/router"
	"github.com/taskcoin/backend/internal/submission"
	"github.com/taskcoin/backend/internal/topup"
	"github.com/taskcoin/backend/internal/withdrawal"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Parse()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := repository.Connect(ctx, cfg.DatabaseURI)
	if err != nil {
		slog.Error("Unable to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL, schema migrations applied")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	submissionRepo := repository.NewSubmissionRepo(pool)
	withdrawalRepo := repository.NewWithdrawalRepo(pool)
	topUpRepo := repository.NewTopUpRepo(pool)
	journalRepo := repository.NewCoinLedgerRepo(pool)

	// Ledger and workflows
	ledgerSvc := ledger.NewService(pool, accountRepo, taskRepo, journalRepo)
	submissionSvc := submission.NewService(pool, submissionRepo, taskRepo, ledgerSvc)
	withdrawalSvc := withdrawal.NewService(pool, accountRepo, withdrawalRepo, journalRepo)

	// Top-up: the enqueue func is set after the River client exists
	// (breaks the init cycle between service and worker).
	var insertMu sync.Mutex
	var insertFn topup.EnqueueConfirmTxFunc
	enqueueConfirm := func(ctx context.Context, tx pgx.Tx, args topup.ConfirmDepositArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args)
	}
	topUpSvc := topup.NewService(pool, accountRepo, topUpRepo, journalRepo, enqueueConfirm)

	gateway := payment.NewGateway(cfg.GatewayAddress)
	workers := river.NewWorkers()
	river.AddWorker(workers, payment.NewConfirmDepositWorker(gateway, topUpSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args topup.ConfirmDepositArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Auth
	authSvc := auth.NewService(accountRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)

	// HTTP
	mux := router.New(router.Deps{
		Auth:        authHandler,
		Tasks:       &handlers.TaskHandler{Ledger: ledgerSvc, Logger: logger},
		Submissions: submission.NewHandler(submissionSvc, logger),
		Withdrawals: withdrawal.NewHandler(withdrawalSvc, logger),
		TopUps:      topup.NewHandler(topUpSvc, logger),
		Dashboard:   dashboard.NewHandler(accountRepo, journalRepo, logger),
		Validator:   authSvc,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (processes deposit confirmations)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "addr", cfg.RunAddress)
	if err := http.ListenAndServe(cfg.RunAddress, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
