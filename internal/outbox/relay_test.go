package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models/events"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/outbox"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	messages  []published
	failTopic string
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failTopic {
		return errors.New("broker unavailable")
	}
	f.messages = append(f.messages, published{topic: topic, key: key, payload: payload})
	return nil
}

func (f *fakePublisher) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.messages))
	copy(out, f.messages)
	return out
}

var routes = map[string]string{
	events.AggregateTransaction: "transactions.commands",
	events.AggregateAccount:     "accounts.events",
}

func seedCommandRow(t *testing.T, store *memory.MemoryStore, txID uuid.UUID) models.OutboxEvent {
	t.Helper()
	env, err := events.NewEnvelope(events.DepositRequestedType, events.AggregateTransaction, txID, txID,
		events.DepositRequested{AccountID: uuid.New(), Amount: decimal.NewFromInt(1), Currency: "USD"})
	require.NoError(t, err)
	row, err := outbox.NewRow(env)
	require.NoError(t, err)

	tx := models.Transaction{ID: txID, Type: models.TransactionDeposit, Status: models.TransactionPending}
	require.NoError(t, store.CreateTransaction(context.Background(), tx, row))
	return row
}

func TestDispatchPendingPublishesAndMarksProcessed(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store, pub, routes, time.Minute, zap.NewNop())

	first := seedCommandRow(t, store, uuid.New())
	second := seedCommandRow(t, store, uuid.New())

	require.NoError(t, relay.DispatchPending(context.Background()))

	sent := pub.sent()
	require.Len(t, sent, 2)
	// Oldest first, keyed by aggregate id.
	require.Equal(t, first.AggregateID.String(), sent[0].key)
	require.Equal(t, second.AggregateID.String(), sent[1].key)
	require.Equal(t, "transactions.commands", sent[0].topic)

	for _, ev := range store.OutboxEvents() {
		require.Equal(t, models.OutboxProcessed, ev.Status)
		require.NotNil(t, ev.ProcessedAt)
	}

	// Nothing left for a second pass.
	require.NoError(t, relay.DispatchPending(context.Background()))
	require.Len(t, pub.sent(), 2)
}

func TestPublishFailureMarksRowFailedWithoutRetry(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &fakePublisher{failTopic: "transactions.commands"}
	relay := outbox.NewRelay(store, pub, routes, time.Minute, zap.NewNop())

	row := seedCommandRow(t, store, uuid.New())

	require.NoError(t, relay.DispatchPending(context.Background()))
	require.Empty(t, pub.sent())

	all := store.OutboxEvents()
	require.Len(t, all, 1)
	require.Equal(t, row.ID, all[0].ID)
	require.Equal(t, models.OutboxFailed, all[0].Status)

	// Failed rows are an operator concern; the relay never retries them.
	pub.failTopic = ""
	require.NoError(t, relay.DispatchPending(context.Background()))
	require.Empty(t, pub.sent())
}

func TestUnroutedAggregateTypeMarkedFailed(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store, pub, map[string]string{}, time.Minute, zap.NewNop())

	seedCommandRow(t, store, uuid.New())

	require.NoError(t, relay.DispatchPending(context.Background()))
	require.Empty(t, pub.sent())
	require.Equal(t, models.OutboxFailed, store.OutboxEvents()[0].Status)
}

// blockingPublisher parks the first publish until released, to provoke an
// overlapping dispatch pass.
type blockingPublisher struct {
	fakePublisher
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.fakePublisher.Publish(ctx, topic, key, payload)
}

func TestDispatchPassesNeverOverlap(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &blockingPublisher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	relay := outbox.NewRelay(store, pub, routes, time.Minute, zap.NewNop())

	seedCommandRow(t, store, uuid.New())

	done := make(chan error, 1)
	go func() { done <- relay.DispatchPending(context.Background()) }()

	<-pub.entered

	// A pass started while one is in flight must return without publishing.
	require.NoError(t, relay.DispatchPending(context.Background()))
	require.Empty(t, pub.sent())

	close(pub.release)
	require.NoError(t, <-done)
	require.Len(t, pub.sent(), 1)
}

func TestJanitorSweepsOldRows(t *testing.T) {
	store := memory.NewMemoryStore()
	pub := &fakePublisher{}
	relay := outbox.NewRelay(store, pub, routes, time.Minute, zap.NewNop())

	row := seedCommandRow(t, store, uuid.New())
	require.NoError(t, relay.DispatchPending(context.Background()))

	// Age the published row and its dedup twin past the retention window.
	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.MarkOutboxProcessed(context.Background(), row.ID, old))
	require.NoError(t, store.MarkEventProcessed(context.Background(), models.ProcessedEvent{
		EventID:     uuid.New(),
		ProcessedAt: old,
	}))

	janitor := outbox.NewJanitor(store, 24*time.Hour, time.Minute, zap.NewNop())
	require.NoError(t, janitor.Sweep(context.Background()))

	require.Empty(t, store.OutboxEvents())
}
