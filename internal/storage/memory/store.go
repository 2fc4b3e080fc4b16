package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// MemoryStore is an in-memory implementation of interfaces.Store. A single
// mutex makes each composite operation atomic, mirroring the multi-row
// transaction the postgres store runs. Used by tests and local runs.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]models.Account
	transactions map[uuid.UUID]models.Transaction
	outbox       []models.OutboxEvent
	processed    map[uuid.UUID]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[uuid.UUID]models.Account),
		transactions: make(map[uuid.UUID]models.Transaction),
		outbox:       make([]models.OutboxEvent, 0),
		processed:    make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account models.Account, outbox models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts[account.ID] = account
	m.outbox = append(m.outbox, outbox)
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return account, nil
}

func (m *MemoryStore) ApplyAccountMutation(ctx context.Context, account models.Account, expectedVersion int64, processed models.ProcessedEvent, outbox models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A dedup record means this event already committed; reapplying would
	// double-apply the mutation.
	if _, done := m.processed[processed.EventID]; done {
		return nil
	}

	current, ok := m.accounts[account.ID]
	if !ok {
		return models.ErrAccountNotFound
	}
	if current.Version != expectedVersion {
		return models.ErrConflict
	}

	account.Version = expectedVersion + 1
	account.UpdatedAt = time.Now().UTC()
	m.accounts[account.ID] = account
	m.processed[processed.EventID] = processed.ProcessedAt
	m.outbox = append(m.outbox, outbox)
	return nil
}

func (m *MemoryStore) RecordRejectedCommand(ctx context.Context, processed models.ProcessedEvent, outbox models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.processed[processed.EventID]; done {
		return nil
	}
	m.processed[processed.EventID] = processed.ProcessedAt
	m.outbox = append(m.outbox, outbox)
	return nil
}

func (m *MemoryStore) IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, done := m.processed[eventID]
	return done, nil
}

func (m *MemoryStore) MarkEventProcessed(ctx context.Context, processed models.ProcessedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.processed[processed.EventID]; !done {
		m.processed[processed.EventID] = processed.ProcessedAt
	}
	return nil
}

func (m *MemoryStore) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, at := range m.processed {
		if at.Before(before) {
			delete(m.processed, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx models.Transaction, outbox models.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions[tx.ID] = tx
	m.outbox = append(m.outbox, outbox)
	return nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	return tx, nil
}

func (m *MemoryStore) SetTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok || tx.Status != models.TransactionPending {
		return false, nil
	}

	tx.Status = status
	tx.UpdatedAt = time.Now().UTC()
	m.transactions[id] = tx
	return true, nil
}

// PendingOutboxEvents returns Pending rows oldest first. Rows are appended in
// creation order, so insertion order is creation order.
func (m *MemoryStore) PendingOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []models.OutboxEvent
	for _, ev := range m.outbox {
		if ev.Status == models.OutboxPending {
			pending = append(pending, ev)
		}
	}
	return pending, nil
}

func (m *MemoryStore) MarkOutboxProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outbox {
		if m.outbox[i].ID == id {
			m.outbox[i].Status = models.OutboxProcessed
			at := processedAt
			m.outbox[i].ProcessedAt = &at
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) MarkOutboxFailed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.outbox {
		if m.outbox[i].ID == id {
			m.outbox[i].Status = models.OutboxFailed
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) PurgeProcessedOutbox(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.outbox[:0]
	var removed int64
	for _, ev := range m.outbox {
		if ev.Status == models.OutboxProcessed && ev.ProcessedAt != nil && ev.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	m.outbox = kept
	return removed, nil
}

// OutboxEvents returns a copy of every outbox row. Test and debugging helper.
func (m *MemoryStore) OutboxEvents() []models.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.OutboxEvent, len(m.outbox))
	copy(copied, m.outbox)
	return copied
}

// Compile-time check: ensure MemoryStore implements the Store interface.
var _ interfaces.Store = (*MemoryStore)(nil)
