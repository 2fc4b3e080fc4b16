package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
)

// NewRow wraps an envelope in a Pending outbox row. The row has no life of
// its own: the caller must persist it in the same store transaction as the
// mutation it reports, so that neither can commit without the other.
func NewRow(env events.Envelope) (models.OutboxEvent, error) {
	payload, err := env.Encode()
	if err != nil {
		return models.OutboxEvent{}, err
	}

	return models.OutboxEvent{
		ID:            uuid.New(),
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		EventType:     env.EventType,
		Payload:       payload,
		Status:        models.OutboxPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
