package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is the dedup ledger for inbound commands, keyed by the
// command envelope's event id. It is written in the same store transaction
// as the mutation it guards and never updated afterwards.
type ProcessedEvent struct {
	EventID     uuid.UUID
	ProcessedAt time.Time
}
