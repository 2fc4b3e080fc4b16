package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
)

// Janitor bounds the growth of the outbox and dedup tables. Processed outbox
// rows and processed-event records older than the retention window are safe
// to drop: redeliveries of commands that old are outside the bus retention
// anyway.
type Janitor struct {
	store     interfaces.Store
	retention time.Duration
	interval  time.Duration
	log       *zap.Logger
}

func NewJanitor(store interfaces.Store, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		store:     store,
		retention: retention,
		interval:  interval,
		log:       logger,
	}
}

// Run sweeps on the configured interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				j.log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep deletes rows past the retention window and logs what it removed.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	outboxRemoved, err := j.store.PurgeProcessedOutbox(ctx, cutoff)
	if err != nil {
		return err
	}

	dedupRemoved, err := j.store.PurgeProcessedEvents(ctx, cutoff)
	if err != nil {
		return err
	}

	if outboxRemoved > 0 || dedupRemoved > 0 {
		j.log.Info("retention sweep completed",
			zap.Int64("outbox_rows_removed", outboxRemoved),
			zap.Int64("dedup_records_removed", dedupRemoved),
			zap.Time("cutoff", cutoff))
	}
	return nil
}
