package events

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Command channel payloads, consumed by the command processor.

type DepositRequested struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type WithdrawRequested struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type TransferRequested struct {
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

type RefundRequested struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

// Result channel payloads, emitted by the ledger and reduced by the saga
// coordinator.

type AccountCreated struct {
	AccountID      uuid.UUID       `json:"account_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type MoneyCredited struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type MoneyDebited struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type MoneyReserved struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

type ReservationFailed struct {
	AccountID uuid.UUID `json:"account_id"`
	Reason    string    `json:"reason"`
}

type RefundCompleted struct {
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}
