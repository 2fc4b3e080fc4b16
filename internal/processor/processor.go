package processor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
)

// Processor consumes command messages and applies them to the ledger at most
// once in effect. Delivery is at-least-once, so every command is deduplicated
// by event id before dispatch, and the dedup record commits atomically with
// the mutation it guards.
//
// Business failures (insufficient funds, frozen account) return nil: the
// command is handled, its failure result is already in the outbox, and a
// redelivery would be a no-op. Technical errors, including version
// conflicts, return non-nil so the bus redelivers the message.
type Processor struct {
	ledger *ledger.Ledger
	store  interfaces.AccountStore
	log    *zap.Logger
}

func NewProcessor(l *ledger.Ledger, store interfaces.AccountStore, logger *zap.Logger) *Processor {
	return &Processor{ledger: l, store: store, log: logger}
}

// Handle processes one raw command message.
func (p *Processor) Handle(ctx context.Context, message []byte) error {
	env, err := events.Decode(message)
	if err != nil {
		return err
	}

	done, err := p.store.IsEventProcessed(ctx, env.EventID)
	if err != nil {
		return err
	}
	if done {
		p.log.Info("event already processed, skipping",
			zap.String("event_id", env.EventID.String()),
			zap.String("event_type", env.EventType))
		return nil
	}

	p.log.Info("processing command",
		zap.String("event_id", env.EventID.String()),
		zap.String("event_type", env.EventType),
		zap.String("transaction_id", env.TransactionID.String()))

	switch env.EventType {
	case events.DepositRequestedType:
		var cmd events.DepositRequested
		if err := env.DecodePayload(&cmd); err != nil {
			return err
		}
		err = p.ledger.Deposit(ctx, cmd.AccountID, cmd.Amount, cmd.Currency, env.TransactionID, env.EventID)

	case events.WithdrawRequestedType:
		var cmd events.WithdrawRequested
		if err := env.DecodePayload(&cmd); err != nil {
			return err
		}
		err = p.ledger.Withdraw(ctx, cmd.AccountID, cmd.Amount, cmd.Currency, env.TransactionID, env.EventID)

	case events.TransferRequestedType:
		var cmd events.TransferRequested
		if err := env.DecodePayload(&cmd); err != nil {
			return err
		}
		err = p.ledger.Reserve(ctx, cmd.FromAccountID, cmd.Amount, cmd.Currency, env.TransactionID, env.EventID)

	case events.RefundRequestedType:
		var cmd events.RefundRequested
		if err := env.DecodePayload(&cmd); err != nil {
			return err
		}
		err = p.ledger.Refund(ctx, cmd.AccountID, cmd.Amount, cmd.Currency, env.TransactionID, env.EventID)

	default:
		p.log.Warn("unhandled command type",
			zap.String("event_type", env.EventType),
			zap.String("event_id", env.EventID.String()))
		return p.store.MarkEventProcessed(ctx, models.ProcessedEvent{
			EventID:     env.EventID,
			ProcessedAt: time.Now().UTC(),
		})
	}

	var bizErr *models.BusinessError
	if errors.As(err, &bizErr) {
		p.log.Warn("command handled with business failure",
			zap.String("event_id", env.EventID.String()),
			zap.String("code", bizErr.Code))
		return nil
	}
	return err
}
