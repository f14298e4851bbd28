package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskcoin/backend/internal/models"
	"github.com/taskcoin/backend/internal/repository"
	"github.com/taskcoin/backend/internal/testutil"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountStore, TaskStore and JournalStore. These let us
// test the real escrow logic without a database.
// ---------------------------------------------------------------------------

type mockAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
}

func newMockAccounts(accs ...*models.Account) *mockAccounts {
	m := &mockAccounts{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accs {
		cp := *a
		m.accounts[a.ID] = &cp
	}
	return m
}

func (m *mockAccounts) DeductCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	if a.CoinBalance < amount {
		return 0, repository.ErrInsufficientBalance
	}
	a.CoinBalance -= amount
	return a.CoinBalance, nil
}

func (m *mockAccounts) AddCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account %s not found", id)
	}
	a.CoinBalance += amount
	return a.CoinBalance, nil
}

func (m *mockAccounts) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].CoinBalance
}

// ---

type mockTasks struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMockTasks(tasks ...*models.Task) *mockTasks {
	m := &mockTasks{tasks: make(map[uuid.UUID]*models.Task)}
	for _, t := range tasks {
		cp := *t
		m.tasks[t.ID] = &cp
	}
	return m
}

func (m *mockTasks) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTasks) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTasks) ConsumeSlot(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != models.TaskStatusOpen || t.OpenSlots == 0 {
		return nil, repository.ErrNoOpenSlots
	}
	t.OpenSlots--
	if t.OpenSlots == 0 {
		t.Status = models.TaskStatusCompleted
	}
	cp := *t
	return &cp, nil
}

func (m *mockTasks) Cancel(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.Status != models.TaskStatusOpen {
		return nil, repository.ErrTaskNotOpen
	}
	t.Status = models.TaskStatusCancelled
	cp := *t
	return &cp, nil
}

func (m *mockTasks) ListOpen(_ context.Context) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.Status == models.TaskStatusOpen {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---

type mockJournal struct {
	mu      sync.Mutex
	entries []*models.CoinEntry
}

func (m *mockJournal) CreateTx(_ context.Context, _ pgx.Tx, e *models.CoinEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockJournal) byType(entryType string) []*models.CoinEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CoinEntry
	for _, e := range m.entries {
		if e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockJournal) all() []*models.CoinEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.CoinEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func acct(id uuid.UUID, balance int64) *models.Account {
	return &models.Account{ID: id, CoinBalance: balance}
}

func openTask(buyerID uuid.UUID, payable int64, slots int) *models.Task {
	return &models.Task{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		Title:            "label images",
		PayablePerWorker: payable,
		SlotCount:        slots,
		OpenSlots:        slots,
		Status:           models.TaskStatusOpen,
	}
}

func newTestService(accounts *mockAccounts, tasks *mockTasks, journal *mockJournal) *Service {
	return NewService(testutil.TxPool{}, accounts, tasks, journal)
}

// ---------------------------------------------------------------------------
// 1. TestCreateTask
// ---------------------------------------------------------------------------

func TestCreateTask(t *testing.T) {
	buyer := uuid.New()

	accounts := newMockAccounts(acct(buyer, 1000))
	tasks := newMockTasks()
	journal := &mockJournal{}
	svc := newTestService(accounts, tasks, journal)

	ctx := context.Background()
	task, err := svc.CreateTask(ctx, buyer, 100, 3, "label images", "label 50 images each")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// 3 slots at 100 each escrow 300.
	if got := accounts.balance(buyer); got != 700 {
		t.Errorf("buyer balance after create: got %d, want 700", got)
	}
	if task.Status != models.TaskStatusOpen || task.OpenSlots != 3 || task.SlotCount != 3 {
		t.Errorf("task state: got status=%s open=%d count=%d", task.Status, task.OpenSlots, task.SlotCount)
	}

	locks := journal.byType(models.CoinEntryEscrowLock)
	if len(locks) != 1 {
		t.Fatalf("escrow_lock entries: got %d, want 1", len(locks))
	}
	if locks[0].Amount != 300 || locks[0].AccountID != buyer {
		t.Errorf("lock entry: got amount=%d account=%s", locks[0].Amount, locks[0].AccountID)
	}
	if locks[0].TaskID == nil || *locks[0].TaskID != task.ID {
		t.Error("lock entry should reference the task")
	}
}

func TestCreateTask_InsufficientBalance(t *testing.T) {
	buyer := uuid.New()

	accounts := newMockAccounts(acct(buyer, 299))
	tasks := newMockTasks()
	journal := &mockJournal{}
	svc := newTestService(accounts, tasks, journal)

	_, err := svc.CreateTask(context.Background(), buyer, 100, 3, "label images", "")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got: %v", err)
	}
	// Nothing was persisted.
	if got := accounts.balance(buyer); got != 299 {
		t.Errorf("buyer balance should be unchanged: got %d", got)
	}
	if len(journal.all()) != 0 {
		t.Errorf("expected no journal entries, got %d", len(journal.all()))
	}
}

func TestCreateTask_Validation(t *testing.T) {
	buyer := uuid.New()
	svc := newTestService(newMockAccounts(acct(buyer, 1000)), newMockTasks(), &mockJournal{})
	ctx := context.Background()

	cases := []struct {
		name    string
		payable int64
		slots   int
		title   string
	}{
		{"zero payable", 0, 3, "t"},
		{"negative payable", -5, 3, "t"},
		{"zero slots", 100, 0, "t"},
		{"empty title", 100, 3, ""},
	}
	for _, tc := range cases {
		if _, err := svc.CreateTask(ctx, buyer, tc.payable, tc.slots, tc.title, ""); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}

// ---------------------------------------------------------------------------
// 2. TestCancelTask
// ---------------------------------------------------------------------------

func TestCancelTask(t *testing.T) {
	buyer := uuid.New()
	task := openTask(buyer, 100, 3)
	task.OpenSlots = 2 // one slot already settled

	accounts := newMockAccounts(acct(buyer, 0))
	tasks := newMockTasks(task)
	journal := &mockJournal{}
	svc := newTestService(accounts, tasks, journal)

	got, err := svc.CancelTask(context.Background(), task.ID, buyer)
	if err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if got.Status != models.TaskStatusCancelled {
		t.Errorf("status: got %s, want cancelled", got.Status)
	}

	// Refund covers the two unfilled slots only.
	if b := accounts.balance(buyer); b != 200 {
		t.Errorf("buyer balance after cancel: got %d, want 200", b)
	}
	releases := journal.byType(models.CoinEntryEscrowRelease)
	if len(releases) != 1 || releases[0].Amount != 200 {
		t.Errorf("escrow_release entries: got %+v", releases)
	}
}

func TestCancelTask_Errors(t *testing.T) {
	buyer := uuid.New()
	stranger := uuid.New()
	task := openTask(buyer, 100, 2)

	accounts := newMockAccounts(acct(buyer, 0))
	tasks := newMockTasks(task)
	svc := newTestService(accounts, tasks, &mockJournal{})
	ctx := context.Background()

	if _, err := svc.CancelTask(ctx, uuid.New(), buyer); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("missing task: expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.CancelTask(ctx, task.ID, stranger); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner: expected ErrNotOwner, got %v", err)
	}

	// First cancel succeeds, second finds the task no longer open.
	if _, err := svc.CancelTask(ctx, task.ID, buyer); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if _, err := svc.CancelTask(ctx, task.ID, buyer); !errors.Is(err, ErrTaskNotOpen) {
		t.Errorf("second cancel: expected ErrTaskNotOpen, got %v", err)
	}
	// The second attempt must not refund again.
	if b := accounts.balance(buyer); b != 200 {
		t.Errorf("buyer balance: got %d, want 200", b)
	}
}

// ---------------------------------------------------------------------------
// 3. TestSettleApproval
// ---------------------------------------------------------------------------

func TestSettleApproval(t *testing.T) {
	buyer := uuid.New()
	worker := uuid.New()
	task := openTask(buyer, 100, 2)

	accounts := newMockAccounts(acct(buyer, 0), acct(worker, 50))
	tasks := newMockTasks(task)
	journal := &mockJournal{}
	svc := newTestService(accounts, tasks, journal)
	ctx := context.Background()

	got, err := svc.SettleApproval(ctx, testutil.NoopTx{}, task.ID, worker, 100)
	if err != nil {
		t.Fatalf("SettleApproval: %v", err)
	}
	if got.OpenSlots != 1 || got.Status != models.TaskStatusOpen {
		t.Errorf("after first settle: open=%d status=%s", got.OpenSlots, got.Status)
	}
	if b := accounts.balance(worker); b != 150 {
		t.Errorf("worker balance: got %d, want 150", b)
	}

	// Consuming the last slot completes the task.
	got, err = svc.SettleApproval(ctx, testutil.NoopTx{}, task.ID, worker, 100)
	if err != nil {
		t.Fatalf("SettleApproval (last slot): %v", err)
	}
	if got.OpenSlots != 0 || got.Status != models.TaskStatusCompleted {
		t.Errorf("after last settle: open=%d status=%s", got.OpenSlots, got.Status)
	}

	// No slots left.
	if _, err := svc.SettleApproval(ctx, testutil.NoopTx{}, task.ID, worker, 100); !errors.Is(err, ErrNoOpenSlots) {
		t.Errorf("expected ErrNoOpenSlots, got %v", err)
	}
	if b := accounts.balance(worker); b != 250 {
		t.Errorf("worker balance after failed settle: got %d, want 250", b)
	}

	earnings := journal.byType(models.CoinEntryTaskEarning)
	if len(earnings) != 2 {
		t.Errorf("task_earning entries: got %d, want 2", len(earnings))
	}
}

// ---------------------------------------------------------------------------
// 4. TestLedgerIntegrity
//    Full cycle: create → settle one slot → cancel. Per-account journal
//    sums must match balances and total coins must be conserved.
// ---------------------------------------------------------------------------

func TestLedgerIntegrity(t *testing.T) {
	buyer := uuid.New()
	worker := uuid.New()

	const initialBuyer = 1000
	const initialWorker = 200

	accounts := newMockAccounts(acct(buyer, initialBuyer), acct(worker, initialWorker))
	tasks := newMockTasks()
	journal := &mockJournal{}
	svc := newTestService(accounts, tasks, journal)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, buyer, 100, 3, "label images", "")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.SettleApproval(ctx, testutil.NoopTx{}, task.ID, worker, 100); err != nil {
		t.Fatalf("SettleApproval: %v", err)
	}
	if _, err := svc.CancelTask(ctx, task.ID, buyer); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}

	deltas := map[uuid.UUID]int64{}
	for _, e := range journal.all() {
		deltas[e.AccountID] += e.SignedAmount()
	}
	initials := map[uuid.UUID]int64{buyer: initialBuyer, worker: initialWorker}
	for id, initial := range initials {
		expected := initial + deltas[id]
		if got := accounts.balance(id); got != expected {
			t.Errorf("account %s: initial(%d) + journal_sum(%d) = %d, but balance is %d",
				id, initial, deltas[id], expected, got)
		}
	}

	// Global conservation: no coins minted or destroyed.
	totalInitial := int64(initialBuyer + initialWorker)
	totalNow := accounts.balance(buyer) + accounts.balance(worker)
	if totalNow != totalInitial {
		t.Errorf("coin conservation violated: initial total %d, current total %d", totalInitial, totalNow)
	}
}
