package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/outbox"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/storage/memory"
)

func newLedger(t *testing.T) (*ledger.Ledger, *memory.MemoryStore) {
	t.Helper()
	store := memory.NewMemoryStore()
	return ledger.NewLedger(store, zap.NewNop()), store
}

func outboxRowsOfType(store *memory.MemoryStore, eventType string) []models.OutboxEvent {
	var rows []models.OutboxEvent
	for _, ev := range store.OutboxEvents() {
		if ev.EventType == eventType {
			rows = append(rows, ev)
		}
	}
	return rows
}

func TestCreateAccountEmitsAccountCreated(t *testing.T) {
	l, store := newLedger(t)

	account, err := l.CreateAccount(context.Background(), uuid.New(), decimal.NewFromInt(100))
	require.NoError(t, err)
	require.Equal(t, models.AccountActive, account.Status)
	require.Equal(t, int64(1), account.Version)

	rows := outboxRowsOfType(store, events.AccountCreatedType)
	require.Len(t, rows, 1)
	require.Equal(t, account.ID, rows[0].AggregateID)
	require.Equal(t, models.OutboxPending, rows[0].Status)
}

func TestCreateAccountRejectsNegativeInitialBalance(t *testing.T) {
	l, store := newLedger(t)

	_, err := l.CreateAccount(context.Background(), uuid.New(), decimal.RequireFromString("-1.00"))
	require.ErrorIs(t, err, ledger.ErrNegativeInitialBalance)
	require.Empty(t, store.OutboxEvents())
}

func TestDepositCreditsAndEmitsMoneyCredited(t *testing.T) {
	l, store := newLedger(t)

	account, err := l.CreateAccount(context.Background(), uuid.New(), decimal.Zero)
	require.NoError(t, err)

	amount := decimal.RequireFromString("50.00")
	err = l.Deposit(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New())
	require.NoError(t, err)

	got, err := l.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(amount), "balance = %s", got.Balance)
	require.Equal(t, account.Version+1, got.Version)

	rows := outboxRowsOfType(store, events.MoneyCreditedType)
	require.Len(t, rows, 1)

	env, err := events.Decode(rows[0].Payload)
	require.NoError(t, err)
	var payload events.MoneyCredited
	require.NoError(t, env.DecodePayload(&payload))
	require.Equal(t, account.ID, payload.AccountID)
	require.True(t, payload.Amount.Equal(amount))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	l, store := newLedger(t)

	account, err := l.CreateAccount(context.Background(), uuid.New(), decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	txID := uuid.New()
	err = l.Withdraw(context.Background(), account.ID, decimal.RequireFromString("50.00"), "USD", txID, uuid.New())

	var bizErr *models.BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, models.CodeInsufficientFunds, bizErr.Code)

	got, err := l.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("10.00")))
	require.Equal(t, account.Version, got.Version)

	rows := outboxRowsOfType(store, events.ReservationFailedType)
	require.Len(t, rows, 1)

	env, err := events.Decode(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, txID, env.TransactionID)
	var payload events.ReservationFailed
	require.NoError(t, env.DecodePayload(&payload))
	require.Equal(t, models.ReasonInsufficientFunds, payload.Reason)
	require.Equal(t, account.ID, payload.AccountID)
}

func TestFrozenAccountRejectsEveryMutation(t *testing.T) {
	l, store := newLedger(t)

	account := models.Account{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Balance:    decimal.RequireFromString("100.00"),
		Status:     models.AccountFrozen,
		Version:    1,
	}
	env, err := events.NewEnvelope(events.AccountCreatedType, events.AggregateAccount, account.ID, uuid.Nil,
		events.AccountCreated{AccountID: account.ID, CustomerID: account.CustomerID, InitialBalance: account.Balance})
	require.NoError(t, err)
	row, err := outbox.NewRow(env)
	require.NoError(t, err)
	require.NoError(t, store.CreateAccount(context.Background(), account, row))

	amount := decimal.RequireFromString("5.00")
	ops := []func() error{
		func() error { return l.Deposit(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New()) },
		func() error { return l.Withdraw(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New()) },
		func() error { return l.Reserve(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New()) },
		func() error { return l.Refund(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New()) },
	}

	for _, op := range ops {
		var bizErr *models.BusinessError
		require.ErrorAs(t, op(), &bizErr)
		require.Equal(t, models.CodeAccountFrozen, bizErr.Code)
	}

	got, err := l.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(account.Balance))
	require.Equal(t, account.Version, got.Version)
}

func TestAccountNotFound(t *testing.T) {
	l, _ := newLedger(t)

	err := l.Deposit(context.Background(), uuid.New(), decimal.NewFromInt(1), "USD", uuid.New(), uuid.New())
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}

// staleReadStore returns a stale version on the first read to force a
// conditional-write conflict.
type staleReadStore struct {
	*memory.MemoryStore
	mu    sync.Mutex
	stale int
}

func (s *staleReadStore) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	account, err := s.MemoryStore.GetAccount(ctx, id)
	if err != nil {
		return account, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale > 0 {
		s.stale--
		account.Version--
	}
	return account, nil
}

func TestVersionConflictAbortsAttempt(t *testing.T) {
	base := memory.NewMemoryStore()
	store := &staleReadStore{MemoryStore: base, stale: 1}
	l := ledger.NewLedger(store, zap.NewNop())

	seed := ledger.NewLedger(base, zap.NewNop())
	account, err := seed.CreateAccount(context.Background(), uuid.New(), decimal.NewFromInt(100))
	require.NoError(t, err)

	eventID := uuid.New()
	err = l.Deposit(context.Background(), account.ID, decimal.NewFromInt(10), "USD", uuid.New(), eventID)
	require.True(t, errors.Is(err, models.ErrConflict))

	// The losing attempt left nothing behind: no dedup record, no mutation.
	done, err := base.IsEventProcessed(context.Background(), eventID)
	require.NoError(t, err)
	require.False(t, done)

	got, err := seed.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
	require.Equal(t, account.Version, got.Version)
}

func TestConcurrentDepositsLoseNoUpdates(t *testing.T) {
	l, store := newLedger(t)

	account, err := l.CreateAccount(context.Background(), uuid.New(), decimal.Zero)
	require.NoError(t, err)

	const workers = 10
	amount := decimal.RequireFromString("10.00")

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = l.Deposit(context.Background(), account.ID, amount, "USD", uuid.New(), uuid.New())
		}(i)
	}
	wg.Wait()

	var succeeded int64
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, models.ErrConflict)
		}
	}
	require.Greater(t, succeeded, int64(0))

	got, err := l.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)

	want := amount.Mul(decimal.NewFromInt(succeeded))
	require.True(t, got.Balance.Equal(want), "balance %s, want %s", got.Balance, want)
	require.Equal(t, account.Version+succeeded, got.Version)

	// Every successful write announced itself exactly once.
	credited := outboxRowsOfType(store, events.MoneyCreditedType)
	require.Len(t, credited, int(succeeded))
}
