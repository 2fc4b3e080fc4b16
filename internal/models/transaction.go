package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes the money movement a transaction asks for.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTransfer   TransactionType = "TRANSFER"
)

// TransactionStatus is the saga-visible state of a transaction. It starts
// Pending and moves at most once to a terminal value.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction represents an intent to move money. Deposits and withdrawals
// target AccountID; transfers carry the FromAccountID/ToAccountID pair and
// leave AccountID as uuid.Nil.
type Transaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Type          TransactionType
	Status        TransactionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
