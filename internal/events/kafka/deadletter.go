package kafka

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// DeadLetterSuffix names the dead-letter twin of a topic.
const DeadLetterSuffix = ".DLT"

type deadLetterRecord struct {
	OriginalTopic string    `json:"original_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Partition     int       `json:"partition"`
	Offset        int64     `json:"offset"`
	FailureReason string    `json:"failure_reason"`
	FailedAt      time.Time `json:"failed_at"`
}

// DeadLetter publishes exhausted messages to the source topic's ".DLT" twin,
// preserving the original key, value and position for later inspection or
// replay by an operator.
type DeadLetter struct {
	publisher interfaces.EventPublisher
	log       *zap.Logger
}

func NewDeadLetter(publisher interfaces.EventPublisher, logger *zap.Logger) *DeadLetter {
	return &DeadLetter{publisher: publisher, log: logger}
}

func (d *DeadLetter) Accept(ctx context.Context, original models.BusMessage, reason string) error {
	record := deadLetterRecord{
		OriginalTopic: original.Topic,
		OriginalKey:   string(original.Key),
		OriginalValue: string(original.Value),
		Partition:     original.Partition,
		Offset:        original.Offset,
		FailureReason: reason,
		FailedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	d.log.Error("message dead-lettered",
		zap.String("original_topic", original.Topic),
		zap.Int64("offset", original.Offset),
		zap.String("reason", reason))

	return d.publisher.Publish(ctx, original.Topic+DeadLetterSuffix, string(original.Key), data)
}

var _ interfaces.DeadLetterSink = (*DeadLetter)(nil)
