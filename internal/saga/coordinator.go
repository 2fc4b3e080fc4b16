package saga

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
)

// Coordinator folds result events into a transaction's status:
//
//	MoneyCredited, MoneyDebited -> Completed
//	ReservationFailed           -> Failed
//	RefundCompleted             -> Failed (compensation succeeded, the
//	                               original operation still failed)
//
// Terminal statuses are immutable: the store only transitions Pending rows,
// so a late result can never flip a Completed transaction to Failed. A
// result for a transaction this instance does not know is dropped, which is
// an accepted lossy edge under commit-visibility races.
type Coordinator struct {
	store interfaces.TransactionStore
	log   *zap.Logger
}

func NewCoordinator(store interfaces.TransactionStore, logger *zap.Logger) *Coordinator {
	return &Coordinator{store: store, log: logger}
}

// Handle reduces one raw result message.
func (c *Coordinator) Handle(ctx context.Context, message []byte) error {
	env, err := events.Decode(message)
	if err != nil {
		return err
	}

	var status models.TransactionStatus
	switch env.EventType {
	case events.MoneyCreditedType, events.MoneyDebitedType:
		status = models.TransactionCompleted

	case events.ReservationFailedType, events.RefundCompletedType:
		status = models.TransactionFailed

	case events.MoneyReservedType:
		// Reservation is an intermediate step; the transfer's second leg is
		// settled outside this event set.
		c.log.Info("money reserved",
			zap.String("transaction_id", env.TransactionID.String()))
		return nil

	case events.AccountCreatedType:
		return nil

	default:
		c.log.Warn("unknown result event type, dropping",
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID.String()))
		return nil
	}

	if env.TransactionID == uuid.Nil {
		c.log.Warn("result event without transaction id, dropping",
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID.String()))
		return nil
	}

	applied, err := c.store.SetTransactionStatus(ctx, env.TransactionID, status)
	if err != nil {
		return err
	}
	if applied {
		c.log.Info("transaction status updated",
			zap.String("transaction_id", env.TransactionID.String()),
			zap.String("status", string(status)),
			zap.String("event_type", env.EventType))
		return nil
	}

	if _, err := c.store.GetTransaction(ctx, env.TransactionID); err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			c.log.Warn("result for unknown transaction dropped",
				zap.String("transaction_id", env.TransactionID.String()),
				zap.String("event_type", env.EventType))
			return nil
		}
		return err
	}

	c.log.Info("transaction already terminal, result ignored",
		zap.String("transaction_id", env.TransactionID.String()),
		zap.String("event_type", env.EventType))
	return nil
}
