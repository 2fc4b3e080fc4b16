package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sheikh-saqib/banking-ledger-saga/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-saga/internal/models"
)

// PostgresStore implements interfaces.Store on database/sql. Composite
// operations run inside one BEGIN/COMMIT so the mutation, dedup record and
// outbox row are never observed apart. The optimistic version check is a
// conditional UPDATE; zero rows affected means another writer got there first.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateAccount(ctx context.Context, account models.Account, outbox models.OutboxEvent) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const query = `INSERT INTO accounts (id, customer_id, balance, status, version, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = dbTx.ExecContext(ctx, query,
		account.ID, account.CustomerID, account.Balance, account.Status,
		account.Version, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertOutboxEvent(ctx, dbTx, outbox); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	const query = `SELECT id, customer_id, balance, status, version, created_at, updated_at
	FROM accounts WHERE id = $1`

	var account models.Account
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.CustomerID,
		&account.Balance,
		&account.Status,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (p *PostgresStore) ApplyAccountMutation(ctx context.Context, account models.Account, expectedVersion int64, processed models.ProcessedEvent, outbox models.OutboxEvent) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const update = `UPDATE accounts SET balance = $1, status = $2, version = version + 1, updated_at = now()
	WHERE id = $3 AND version = $4`

	res, err := dbTx.ExecContext(ctx, update, account.Balance, account.Status, account.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		// The read was stale. If the dedup record exists the event already
		// committed and this redelivery is a no-op; otherwise it is a
		// genuine version conflict (or the account vanished).
		var done bool
		if err = dbTx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`,
			processed.EventID).Scan(&done); err != nil {
			return err
		}
		if done {
			dbTx.Rollback()
			return nil
		}

		var exists bool
		if err = dbTx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`,
			account.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			err = models.ErrAccountNotFound
			return err
		}
		err = models.ErrConflict
		return err
	}

	if err = insertProcessedEvent(ctx, dbTx, processed); err != nil {
		if isUniqueViolation(err) {
			dbTx.Rollback()
			return nil
		}
		return err
	}

	if err = insertOutboxEvent(ctx, dbTx, outbox); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresStore) RecordRejectedCommand(ctx context.Context, processed models.ProcessedEvent, outbox models.OutboxEvent) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = insertProcessedEvent(ctx, dbTx, processed); err != nil {
		if isUniqueViolation(err) {
			dbTx.Rollback()
			return nil
		}
		return err
	}

	if err = insertOutboxEvent(ctx, dbTx, outbox); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresStore) IsEventProcessed(ctx context.Context, eventID uuid.UUID) (bool, error) {
	const query = `SELECT 1 FROM processed_events WHERE event_id = $1 LIMIT 1`

	var one int
	err := p.db.QueryRowContext(ctx, query, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PostgresStore) MarkEventProcessed(ctx context.Context, processed models.ProcessedEvent) error {
	const query = `INSERT INTO processed_events (event_id, processed_at) VALUES ($1,$2)
	ON CONFLICT (event_id) DO NOTHING`

	_, err := p.db.ExecContext(ctx, query, processed.EventID, processed.ProcessedAt)
	return err
}

func (p *PostgresStore) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE processed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresStore) CreateTransaction(ctx context.Context, tx models.Transaction, outbox models.OutboxEvent) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	const query = `INSERT INTO transactions
	(id, account_id, from_account_id, to_account_id, amount, currency, type, status, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = dbTx.ExecContext(ctx, query,
		tx.ID, tx.AccountID, tx.FromAccountID, tx.ToAccountID,
		tx.Amount, tx.Currency, tx.Type, tx.Status, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertOutboxEvent(ctx, dbTx, outbox); err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresStore) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	const query = `SELECT id, account_id, from_account_id, to_account_id, amount, currency, type, status, created_at, updated_at
	FROM transactions WHERE id = $1`

	var tx models.Transaction
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.FromAccountID,
		&tx.ToAccountID,
		&tx.Amount,
		&tx.Currency,
		&tx.Type,
		&tx.Status,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

// SetTransactionStatus only moves rows out of PENDING, so a terminal status
// can never be overwritten by a late result event.
func (p *PostgresStore) SetTransactionStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatus) (bool, error) {
	const query = `UPDATE transactions SET status = $1, updated_at = now()
	WHERE id = $2 AND status = $3`

	res, err := p.db.ExecContext(ctx, query, status, id, models.TransactionPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (p *PostgresStore) PendingOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error) {
	const query = `SELECT id, aggregate_type, aggregate_id, event_type, payload, status, created_at, processed_at
	FROM outbox_events WHERE status = $1 ORDER BY created_at ASC`

	rows, err := p.db.QueryContext(ctx, query, models.OutboxPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var ev models.OutboxEvent
		var processedAt sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType,
			&ev.Payload, &ev.Status, &ev.CreatedAt, &processedAt); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			ev.ProcessedAt = &processedAt.Time
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (p *PostgresStore) MarkOutboxProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	const query = `UPDATE outbox_events SET status = $1, processed_at = $2 WHERE id = $3`

	_, err := p.db.ExecContext(ctx, query, models.OutboxProcessed, processedAt, id)
	return err
}

func (p *PostgresStore) MarkOutboxFailed(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE outbox_events SET status = $1 WHERE id = $2`

	_, err := p.db.ExecContext(ctx, query, models.OutboxFailed, id)
	return err
}

func (p *PostgresStore) PurgeProcessedOutbox(ctx context.Context, before time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
		models.OutboxProcessed, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func insertOutboxEvent(ctx context.Context, dbTx *sql.Tx, ev models.OutboxEvent) error {
	const query = `INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := dbTx.ExecContext(ctx, query,
		ev.ID, ev.AggregateType, ev.AggregateID, ev.EventType, ev.Payload, ev.Status, ev.CreatedAt)
	return err
}

func insertProcessedEvent(ctx context.Context, dbTx *sql.Tx, processed models.ProcessedEvent) error {
	const query = `INSERT INTO processed_events (event_id, processed_at) VALUES ($1,$2)`

	_, err := dbTx.ExecContext(ctx, query, processed.EventID, processed.ProcessedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ interfaces.Store = (*PostgresStore)(nil)
