package transactions_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/transactions"
)

func newService(t *testing.T) (*transactions.Service, *memory.MemoryStore) {
	t.Helper()
	store := memory.NewMemoryStore()
	return transactions.NewService(store, zap.NewNop()), store
}

func TestCreateDepositWritesPendingRowAndCommand(t *testing.T) {
	svc, store := newService(t)

	accountID := uuid.New()
	amount := decimal.RequireFromString("25.00")

	tx, err := svc.CreateDeposit(context.Background(), accountID, amount, "USD")
	require.NoError(t, err)
	require.Equal(t, models.TransactionPending, tx.Status)
	require.Equal(t, models.TransactionDeposit, tx.Type)
	require.Equal(t, accountID, tx.AccountID)

	got, err := svc.GetTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(amount))

	rows := store.OutboxEvents()
	require.Len(t, rows, 1)
	require.Equal(t, events.DepositRequestedType, rows[0].EventType)
	require.Equal(t, events.AggregateTransaction, rows[0].AggregateType)
	require.Equal(t, tx.ID, rows[0].AggregateID)
	require.Equal(t, models.OutboxPending, rows[0].Status)

	env, err := events.Decode(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, tx.ID, env.TransactionID)
	var payload events.DepositRequested
	require.NoError(t, env.DecodePayload(&payload))
	require.Equal(t, accountID, payload.AccountID)
	require.True(t, payload.Amount.Equal(amount))
}

func TestCreateWithdrawalWritesWithdrawCommand(t *testing.T) {
	svc, store := newService(t)

	tx, err := svc.CreateWithdrawal(context.Background(), uuid.New(), decimal.RequireFromString("5.00"), "USD")
	require.NoError(t, err)
	require.Equal(t, models.TransactionWithdrawal, tx.Type)

	rows := store.OutboxEvents()
	require.Len(t, rows, 1)
	require.Equal(t, events.WithdrawRequestedType, rows[0].EventType)
}

func TestCreateTransferCarriesBothAccounts(t *testing.T) {
	svc, store := newService(t)

	from := uuid.New()
	to := uuid.New()
	tx, err := svc.CreateTransfer(context.Background(), from, to, decimal.RequireFromString("40.00"), "EUR")
	require.NoError(t, err)
	require.Equal(t, models.TransactionTransfer, tx.Type)
	require.Equal(t, from, tx.FromAccountID)
	require.Equal(t, to, tx.ToAccountID)
	require.Equal(t, uuid.Nil, tx.AccountID)

	rows := store.OutboxEvents()
	require.Len(t, rows, 1)

	env, err := events.Decode(rows[0].Payload)
	require.NoError(t, err)
	var payload events.TransferRequested
	require.NoError(t, env.DecodePayload(&payload))
	require.Equal(t, from, payload.FromAccountID)
	require.Equal(t, to, payload.ToAccountID)
	require.Equal(t, "EUR", payload.Currency)
}

func TestNonPositiveAmountRejectedBeforeAnyWrite(t *testing.T) {
	svc, store := newService(t)

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.RequireFromString("-1.00")} {
		_, err := svc.CreateDeposit(context.Background(), uuid.New(), amount, "USD")
		require.ErrorIs(t, err, transactions.ErrNonPositiveAmount)
	}

	require.Empty(t, store.OutboxEvents())
}

func TestGetTransactionNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetTransaction(context.Background(), uuid.New())
	require.ErrorIs(t, err, models.ErrTransactionNotFound)
}
