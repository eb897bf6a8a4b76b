package sqldb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CreateTransaction inserts a new row. A unique violation on transaction_id is reported as models.ErrDuplicate.
func (db *Database) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	row := fromModel(tx)
	row.UUID = uuid.New().String()

	err := db.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDuplicate
		}
		return errors.Wrapf(err, "failed to insert transaction %s", tx.TransactionID)
	}

	return nil
}

func (db *Database) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var row Transaction

	err := db.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to get transaction %s", transactionID)
	}

	tx := row.toModel()
	return &tx, nil
}

// ListTransactions returns the rows matching filter, newest first.
func (db *Database) ListTransactions(ctx context.Context, filter models.Filter) ([]models.Transaction, error) {
	q := db.db.WithContext(ctx).Model(&Transaction{})

	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		q = q.Where("created_at >= ?", filter.CreatedAfter.UTC())
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("created_at <= ?", filter.CreatedBefore.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []Transaction
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list transactions")
	}

	txs := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toModel())
	}

	return txs, nil
}

// UpdateTransactionStatus moves a row from one status to another only if it is still in from.
// It reports whether a row was changed.
func (db *Database) UpdateTransactionStatus(ctx context.Context, transactionID string, from, to models.Status, at time.Time) (bool, error) {
	at = at.UTC()
	values := map[string]any{
		"status":     string(to),
		"updated_at": at,
	}
	if to == models.StatusProcessed {
		values["processed_at"] = at
	}

	result := db.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, string(from)).
		UpdateColumns(values)
	if result.Error != nil {
		return false, errors.Wrapf(result.Error, "failed to update status of transaction %s", transactionID)
	}

	return result.RowsAffected == 1, nil
}

// MarkTransactionEnqueued records that the broker accepted a finalization task for the row.
func (db *Database) MarkTransactionEnqueued(ctx context.Context, transactionID string, at time.Time) error {
	err := db.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("transaction_id = ?", transactionID).
		UpdateColumn("last_enqueued_at", at.UTC()).Error
	if err != nil {
		return errors.Wrapf(err, "failed to mark transaction %s as enqueued", transactionID)
	}

	return nil
}

// ListOrphanedTransactions returns PROCESSING rows created before createdBefore whose finalization task was never
// confirmed by the broker, oldest first. Rows with a confirmed task are never returned.
func (db *Database) ListOrphanedTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	q := db.db.WithContext(ctx).
		Where("status = ?", string(models.StatusProcessing)).
		Where("last_enqueued_at IS NULL").
		Where("created_at < ?", createdBefore.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list orphaned transactions")
	}

	txs := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.toModel())
	}

	return txs, nil
}
