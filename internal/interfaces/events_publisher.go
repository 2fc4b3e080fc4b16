package interfaces

import (
	"context"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// EventPublisher sends an encoded envelope to the bus. Key is the partition /
// routing key, which the relay sets to the aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// DeadLetterSink is the terminal collector for messages that exhausted
// bus-level redelivery. Implementations must persist or log the original
// message durably; replay tooling is out of scope.
type DeadLetterSink interface {
	Accept(ctx context.Context, original models.BusMessage, reason string) error
}
