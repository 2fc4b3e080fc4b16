package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
)

// Account is a ledger account row. Version backs the optimistic concurrency
// check: every committed mutation increments it exactly once, and a writer
// that read a stale version loses the conditional write.
type Account struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Balance    decimal.Decimal
	Status     AccountStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
