package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the publish lifecycle of an outbox row.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxProcessed OutboxStatus = "PROCESSED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is a to-be-published event recorded in the same store
// transaction as the business mutation it reports. The relay publishes
// Pending rows and marks them Processed or Failed; a Failed row is never
// retried automatically.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	Status        OutboxStatus
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}
