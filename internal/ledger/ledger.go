package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/outbox"
)

// ErrNegativeInitialBalance rejects account creation before anything is
// written.
var ErrNegativeInitialBalance = errors.New("initial balance must not be negative")

// Ledger applies balance mutations under optimistic concurrency. Every
// operation is a read-then-conditional-write: the account is read with its
// version, the new balance computed, and the write commits only if the
// stored version is unchanged. A conflict aborts the whole attempt with
// models.ErrConflict and relies on message redelivery to retry; there is no
// in-process retry loop.
//
// Each successful mutation commits together with the command's dedup record
// and the result outbox row, so a crash can never separate the balance
// change from the event announcing it.
type Ledger struct {
	store interfaces.AccountStore
	log   *zap.Logger
}

func NewLedger(store interfaces.AccountStore, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, log: logger}
}

// CreateAccount provisions an Active account and records its AccountCreated
// event in the same commit.
func (l *Ledger) CreateAccount(ctx context.Context, customerID uuid.UUID, initialBalance decimal.Decimal) (models.Account, error) {
	if initialBalance.IsNegative() {
		return models.Account{}, ErrNegativeInitialBalance
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:         uuid.New(),
		CustomerID: customerID,
		Balance:    initialBalance,
		Status:     models.AccountActive,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	env, err := events.NewEnvelope(events.AccountCreatedType, events.AggregateAccount, account.ID, uuid.Nil,
		events.AccountCreated{
			AccountID:      account.ID,
			CustomerID:     customerID,
			InitialBalance: initialBalance,
		})
	if err != nil {
		return models.Account{}, err
	}
	row, err := outbox.NewRow(env)
	if err != nil {
		return models.Account{}, err
	}

	if err := l.store.CreateAccount(ctx, account, row); err != nil {
		return models.Account{}, err
	}

	l.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("customer_id", customerID.String()))
	return account, nil
}

func (l *Ledger) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	return l.store.GetAccount(ctx, id)
}

// Deposit credits the account and emits MoneyCredited.
func (l *Ledger) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID) error {
	return l.credit(ctx, accountID, amount, currency, transactionID, eventID, events.MoneyCreditedType)
}

// Refund compensates a failed saga step by crediting the amount back and
// emits RefundCompleted.
func (l *Ledger) Refund(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID) error {
	return l.credit(ctx, accountID, amount, currency, transactionID, eventID, events.RefundCompletedType)
}

// Withdraw debits the account and emits MoneyDebited.
func (l *Ledger) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID) error {
	return l.debit(ctx, accountID, amount, currency, transactionID, eventID, events.MoneyDebitedType)
}

// Reserve holds the transfer amount on the source account and emits
// MoneyReserved.
func (l *Ledger) Reserve(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID) error {
	return l.debit(ctx, accountID, amount, currency, transactionID, eventID, events.MoneyReservedType)
}

func (l *Ledger) credit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID, resultType string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("non-positive amount %s in %s", amount, resultType)
	}

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status == models.AccountFrozen {
		return l.reject(ctx, account, transactionID, eventID, models.CodeAccountFrozen, models.ReasonAccountFrozen)
	}

	expected := account.Version
	account.Balance = account.Balance.Add(amount)

	if err := l.apply(ctx, account, expected, transactionID, eventID, resultType, amount, currency); err != nil {
		return err
	}

	l.log.Info("account credited",
		zap.String("account_id", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("result", resultType))
	return nil
}

func (l *Ledger) debit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currency string, transactionID, eventID uuid.UUID, resultType string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("non-positive amount %s in %s", amount, resultType)
	}

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status == models.AccountFrozen {
		return l.reject(ctx, account, transactionID, eventID, models.CodeAccountFrozen, models.ReasonAccountFrozen)
	}
	if account.Balance.LessThan(amount) {
		return l.reject(ctx, account, transactionID, eventID, models.CodeInsufficientFunds, models.ReasonInsufficientFunds)
	}

	expected := account.Version
	account.Balance = account.Balance.Sub(amount)

	if err := l.apply(ctx, account, expected, transactionID, eventID, resultType, amount, currency); err != nil {
		return err
	}

	l.log.Info("account debited",
		zap.String("account_id", accountID.String()),
		zap.String("amount", amount.String()),
		zap.String("result", resultType))
	return nil
}

// apply commits the mutated account, the dedup record and the result outbox
// row in one store transaction.
func (l *Ledger) apply(ctx context.Context, account models.Account, expectedVersion int64, transactionID, eventID uuid.UUID, resultType string, amount decimal.Decimal, currency string) error {
	env, err := events.NewEnvelope(resultType, events.AggregateAccount, account.ID, transactionID,
		resultPayload(resultType, account.ID, amount, currency))
	if err != nil {
		return err
	}
	row, err := outbox.NewRow(env)
	if err != nil {
		return err
	}

	processed := models.ProcessedEvent{EventID: eventID, ProcessedAt: time.Now().UTC()}
	return l.store.ApplyAccountMutation(ctx, account, expectedVersion, processed, row)
}

// reject records a business failure: the dedup record and, when the command
// belongs to a transaction, a ReservationFailed result carrying the reason.
// The command counts as handled either way, so a redelivery is a no-op.
func (l *Ledger) reject(ctx context.Context, account models.Account, transactionID, eventID uuid.UUID, code, reason string) error {
	l.log.Warn("command rejected",
		zap.String("account_id", account.ID.String()),
		zap.String("reason", reason),
		zap.String("transaction_id", transactionID.String()))

	processed := models.ProcessedEvent{EventID: eventID, ProcessedAt: time.Now().UTC()}

	if transactionID == uuid.Nil {
		if err := l.store.MarkEventProcessed(ctx, processed); err != nil {
			return err
		}
		return &models.BusinessError{Code: code, Reason: reason}
	}

	env, err := events.NewEnvelope(events.ReservationFailedType, events.AggregateAccount, account.ID, transactionID,
		events.ReservationFailed{AccountID: account.ID, Reason: reason})
	if err != nil {
		return err
	}
	row, err := outbox.NewRow(env)
	if err != nil {
		return err
	}

	if err := l.store.RecordRejectedCommand(ctx, processed, row); err != nil {
		return err
	}
	return &models.BusinessError{Code: code, Reason: reason}
}

func resultPayload(resultType string, accountID uuid.UUID, amount decimal.Decimal, currency string) any {
	switch resultType {
	case events.MoneyCreditedType:
		return events.MoneyCredited{AccountID: accountID, Amount: amount, Currency: currency}
	case events.MoneyDebitedType:
		return events.MoneyDebited{AccountID: accountID, Amount: amount, Currency: currency}
	case events.MoneyReservedType:
		return events.MoneyReserved{AccountID: accountID, Amount: amount, Currency: currency}
	case events.RefundCompletedType:
		return events.RefundCompleted{AccountID: accountID, Amount: amount, Currency: currency}
	default:
		return nil
	}
}
