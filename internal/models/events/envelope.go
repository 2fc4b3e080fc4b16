package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command channel event types.
const (
	DepositRequestedType  = "DepositRequested"
	WithdrawRequestedType = "WithdrawRequested"
	TransferRequestedType = "TransferRequested"
	RefundRequestedType   = "RefundRequested"
)

// Result channel event types.
const (
	AccountCreatedType    = "AccountCreated"
	MoneyCreditedType     = "MoneyCredited"
	MoneyDebitedType      = "MoneyDebited"
	MoneyReservedType     = "MoneyReserved"
	ReservationFailedType = "ReservationFailed"
	RefundCompletedType   = "RefundCompleted"
)

// Aggregate types stamped on envelopes and outbox rows.
const (
	AggregateAccount     = "Account"
	AggregateTransaction = "Transaction"
)

// ErrMissingEventID rejects envelopes that cannot participate in dedup.
var ErrMissingEventID = errors.New("envelope has no event id")

// Envelope is the wire-level unit carried for every command and result
// message. TransactionID and CorrelationID are uuid.Nil when absent; the
// correlation id is opaque to this system and passed through unmodified.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a typed payload in a versioned envelope with a fresh
// event id and correlation id.
func NewEnvelope(eventType, aggregateType string, aggregateID, transactionID uuid.UUID, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  1,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		TransactionID: transactionID,
		CorrelationID: uuid.New(),
		Timestamp:     time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// Decode parses a wire message into an envelope. The payload stays raw until
// the dispatch site knows its concrete type.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == uuid.Nil {
		return Envelope{}, ErrMissingEventID
	}
	return env, nil
}

// Encode serializes the envelope for the outbox payload column and the wire.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", e.EventType, err)
	}
	return data, nil
}

// DecodePayload unmarshals the raw payload into the type matching EventType.
func (e Envelope) DecodePayload(dest any) error {
	if err := json.Unmarshal(e.Payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
