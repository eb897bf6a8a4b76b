package clickhouse

import (
	"context"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/pkg/errors"
)

const eventsTable = "transaction_events"

const createEventsTable = `
CREATE TABLE IF NOT EXISTS transaction_events (
	transaction_id String,
	status         LowCardinality(String),
	amount         String,
	currency       LowCardinality(String),
	occurred_at    DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (transaction_id, occurred_at)`

// Migrate creates the append-only event table.
func (db *Database) Migrate(ctx context.Context) error {
	if err := db.conn.Exec(ctx, createEventsTable); err != nil {
		return errors.Wrap(err, "failed to create transaction_events table")
	}
	return nil
}

// RecordEvent appends one status observation to the event log.
func (db *Database) RecordEvent(ctx context.Context, ev models.TransactionEvent) error {
	batch, err := db.conn.PrepareBatch(ctx, "INSERT INTO "+eventsTable)
	if err != nil {
		return errors.Wrap(err, "failed to prepare event batch")
	}

	if err := batch.AppendStruct(&ev); err != nil {
		_ = batch.Abort()
		return errors.Wrap(err, "failed to append event")
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "failed to send event batch")
	}

	return nil
}

// Events returns the recorded history of a transaction, oldest first.
func (db *Database) Events(ctx context.Context, transactionID string) ([]models.TransactionEvent, error) {
	var events []models.TransactionEvent
	err := db.conn.Select(ctx, &events,
		"SELECT transaction_id, status, amount, currency, occurred_at FROM "+eventsTable+
			" WHERE transaction_id = ? ORDER BY occurred_at", transactionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select transaction events")
	}
	return events, nil
}
