package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/outbox"
)

// ErrNonPositiveAmount rejects requests before anything is written.
var ErrNonPositiveAmount = errors.New("amount must be positive")

// Service is the request-side entry point: it creates the Pending
// transaction row and the initiating command's outbox row in one store
// transaction, then lets the relay and the command processor take over.
// Nothing is published synchronously.
type Service struct {
	store interfaces.TransactionStore
	log   *zap.Logger
}

func NewService(store interfaces.TransactionStore, logger *zap.Logger) *Service {
	return &Service{store: store, log: logger}
}

// CreateDeposit starts a deposit saga.
func (s *Service) CreateDeposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string) (models.Transaction, error) {
	tx := newTransaction(models.TransactionDeposit, amount, currency)
	tx.AccountID = accountID

	return s.create(ctx, tx, events.DepositRequestedType, events.DepositRequested{
		AccountID: accountID,
		Amount:    amount,
		Currency:  currency,
	})
}

// CreateWithdrawal starts a withdrawal saga.
func (s *Service) CreateWithdrawal(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string) (models.Transaction, error) {
	tx := newTransaction(models.TransactionWithdrawal, amount, currency)
	tx.AccountID = accountID

	return s.create(ctx, tx, events.WithdrawRequestedType, events.WithdrawRequested{
		AccountID: accountID,
		Amount:    amount,
		Currency:  currency,
	})
}

// CreateTransfer starts a transfer saga; the first leg reserves the amount
// on the source account.
func (s *Service) CreateTransfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount decimal.Decimal, currency string) (models.Transaction, error) {
	tx := newTransaction(models.TransactionTransfer, amount, currency)
	tx.FromAccountID = fromAccountID
	tx.ToAccountID = toAccountID

	return s.create(ctx, tx, events.TransferRequestedType, events.TransferRequested{
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		Amount:        amount,
		Currency:      currency,
	})
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *Service) create(ctx context.Context, tx models.Transaction, commandType string, payload any) (models.Transaction, error) {
	if !tx.Amount.IsPositive() {
		return models.Transaction{}, ErrNonPositiveAmount
	}

	env, err := events.NewEnvelope(commandType, events.AggregateTransaction, tx.ID, tx.ID, payload)
	if err != nil {
		return models.Transaction{}, err
	}
	row, err := outbox.NewRow(env)
	if err != nil {
		return models.Transaction{}, err
	}

	if err := s.store.CreateTransaction(ctx, tx, row); err != nil {
		return models.Transaction{}, err
	}

	s.log.Info("transaction created",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("type", string(tx.Type)),
		zap.String("command", commandType))
	return tx, nil
}

func newTransaction(txType models.TransactionType, amount decimal.Decimal, currency string) models.Transaction {
	now := time.Now().UTC()
	return models.Transaction{
		ID:        uuid.New(),
		Amount:    amount,
		Currency:  currency,
		Type:      txType,
		Status:    models.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
