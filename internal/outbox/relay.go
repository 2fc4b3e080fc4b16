package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
)

// Relay publishes Pending outbox rows to the bus on a fixed interval. The
// topic is picked per row from the aggregate-type routing table, and the
// aggregate id becomes the message key so all events of one aggregate land
// on the same partition.
//
// Running more than one relay per store produces duplicate publishes; that is
// tolerated because consumers dedup, but single-publish deployments would
// need a row-claiming step this relay does not have.
type Relay struct {
	store     interfaces.OutboxStore
	publisher interfaces.EventPublisher
	routes    map[string]string
	interval  time.Duration
	log       *zap.Logger
	inFlight  atomic.Bool
}

func NewRelay(store interfaces.OutboxStore, publisher interfaces.EventPublisher, routes map[string]string, interval time.Duration, logger *zap.Logger) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		routes:    routes,
		interval:  interval,
		log:       logger,
	}
}

// Run drives DispatchPending on the configured interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.DispatchPending(ctx); err != nil {
				r.log.Error("outbox dispatch pass failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending publishes every Pending row once, oldest first. A pass that
// would overlap a still-running one returns immediately, so the relay never
// races itself. Publish failures mark the row Failed and are not retried
// here; recovering Failed rows is an operator concern.
func (r *Relay) DispatchPending(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer r.inFlight.Store(false)

	pending, err := r.store.PendingOutboxEvents(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	r.log.Info("dispatching outbox events", zap.Int("count", len(pending)))

	for _, ev := range pending {
		topic, ok := r.routes[ev.AggregateType]
		if !ok {
			r.log.Error("no topic route for aggregate type, marking failed",
				zap.String("aggregate_type", ev.AggregateType),
				zap.String("outbox_id", ev.ID.String()))
			if err := r.store.MarkOutboxFailed(ctx, ev.ID); err != nil {
				return err
			}
			continue
		}

		if err := r.publisher.Publish(ctx, topic, ev.AggregateID.String(), ev.Payload); err != nil {
			r.log.Error("publish failed, marking outbox row failed",
				zap.String("outbox_id", ev.ID.String()),
				zap.String("event_type", ev.EventType),
				zap.Error(err))
			if markErr := r.store.MarkOutboxFailed(ctx, ev.ID); markErr != nil {
				return markErr
			}
			continue
		}

		if err := r.store.MarkOutboxProcessed(ctx, ev.ID, time.Now().UTC()); err != nil {
			return err
		}

		r.log.Debug("outbox event published",
			zap.String("outbox_id", ev.ID.String()),
			zap.String("event_type", ev.EventType),
			zap.String("aggregate_id", ev.AggregateID.String()))
	}
	return nil
}
