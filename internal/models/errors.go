package models

import "errors"

// Technical faults. ErrConflict aborts the current processing attempt and is
// retried only through message redelivery, never in-process.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrConflict            = errors.New("account version conflict")
)

// Reason strings carried on failure result events so the saga coordinator can
// react without re-reading ledger state.
const (
	ReasonInsufficientFunds = "Insufficient funds"
	ReasonAccountFrozen     = "Account is frozen"
)

// Machine-readable codes for business failures.
const (
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeAccountFrozen     = "ACCOUNT_FROZEN"
)

// BusinessError is a rejected command outcome, not a fault. The command is
// still considered handled: its dedup record and failure result event are
// committed before this error is returned.
type BusinessError struct {
	Code   string
	Reason string
}

func (e *BusinessError) Error() string { return e.Reason }
