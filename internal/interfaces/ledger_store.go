package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// AccountStore owns account rows and the processed-event dedup ledger. The
// composite operations commit all their rows in one store transaction; none
// of the rows exist if any part rolls back.
type AccountStore interface {
	// CreateAccount inserts the account and its AccountCreated outbox row together.
	CreateAccount(ctx context.Context, account models.Account, outbox models.OutboxEvent) error

	GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error)

	// ApplyAccountMutation writes the mutated account back only if its stored
	// version still equals expectedVersion, incrementing the version on
	// success, and commits the dedup record plus the result outbox row in the
	// same transaction. Returns models.ErrConflict on a version mismatch.
	ApplyAccountMutation(ctx context.Context, account models.Account, expectedVersion int64, processed models.ProcessedEvent, outbox models.OutboxEvent) error

	// RecordRejectedCommand commits the dedup record and a failure result
	// outbox row together, with no account mutation. Used for business
	// failures so a replay of the same command is not reapplied.
	RecordRejectedCommand(ctx context.Context, processed models.ProcessedEvent, outbox models.OutboxEvent) error

	IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error)

	// MarkEventProcessed records a command as handled without any other
	// effect, e.g. for unrecognized command types.
	MarkEventProcessed(ctx context.Context, processed models.ProcessedEvent) error

	// PurgeProcessedEvents deletes dedup records older than the retention
	// cutoff and reports how many were removed.
	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

// TransactionStore owns transaction rows and their status transitions.
type TransactionStore interface {
	// CreateTransaction inserts the Pending transaction and its initiating
	// command outbox row in one transaction.
	CreateTransaction(ctx context.Context, tx models.Transaction, outbox models.OutboxEvent) error

	GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error)

	// SetTransactionStatus moves a Pending transaction to the given status.
	// It reports false without error when no Pending row matched, which
	// covers both a missing transaction and one already terminal.
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) (bool, error)
}

// OutboxStore is the relay's view of outbox rows.
type OutboxStore interface {
	// PendingOutboxEvents returns every Pending row ordered by creation time
	// ascending.
	PendingOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error)

	MarkOutboxProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	MarkOutboxFailed(ctx context.Context, id uuid.UUID) error

	// PurgeProcessedOutbox deletes Processed rows older than the retention
	// cutoff and reports how many were removed.
	PurgeProcessedOutbox(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full durable surface one service instance runs against.
type Store interface {
	AccountStore
	TransactionStore
	OutboxStore
}
