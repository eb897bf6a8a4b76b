package sqldb

import (
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/shopspring/decimal"
)

// Transaction is the row stored in the transactions table.
type Transaction struct {
	ID                 uint64          `gorm:"primaryKey;autoIncrement"`
	UUID               string          `gorm:"type:char(36);not null;uniqueIndex"`
	TransactionID      string          `gorm:"type:varchar(255);not null;uniqueIndex"`
	SourceAccount      string          `gorm:"type:varchar(255);not null"`
	DestinationAccount string          `gorm:"type:varchar(255);not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency           string          `gorm:"type:char(3);not null"`
	Status             string          `gorm:"type:varchar(20);not null;index"`
	CreatedAt          time.Time       `gorm:"not null;index"`
	UpdatedAt          time.Time       `gorm:"not null"`
	ProcessedAt        *time.Time
	LastEnqueuedAt     *time.Time `gorm:"index"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func fromModel(tx *models.Transaction) Transaction {
	return Transaction{
		TransactionID:      tx.TransactionID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		Amount:             tx.Amount,
		Currency:           tx.Currency,
		Status:             string(tx.Status),
		CreatedAt:          tx.CreatedAt.UTC(),
		UpdatedAt:          tx.UpdatedAt.UTC(),
		ProcessedAt:        utcPtr(tx.ProcessedAt),
		LastEnqueuedAt:     utcPtr(tx.LastEnqueuedAt),
	}
}

func (t Transaction) toModel() models.Transaction {
	return models.Transaction{
		TransactionID:      t.TransactionID,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Amount:             t.Amount,
		Currency:           t.Currency,
		Status:             models.Status(t.Status),
		CreatedAt:          t.CreatedAt.UTC(),
		UpdatedAt:          t.UpdatedAt.UTC(),
		ProcessedAt:        utcPtr(t.ProcessedAt),
		LastEnqueuedAt:     utcPtr(t.LastEnqueuedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
