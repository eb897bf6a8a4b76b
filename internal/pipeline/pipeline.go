// Package pipeline holds the ingestion and delayed finalization of webhook transactions.
//
// A transaction is stored as PROCESSING when first seen and a finalization task is scheduled on a durable
// delayed queue. When the task is delivered the Finalizer moves the row to PROCESSED with a conditional
// update, so duplicate or early deliveries never re-apply or skip the transition.
package pipeline

import (
	"context"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFinalizeDelay  = 30 * time.Second
	DefaultPublishTimeout = 5 * time.Second
	DefaultListLimit      = 100
	MaxListLimit          = 1000
)

// TransactionStore is the durable record storage used by the pipeline.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.Filter) ([]models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, transactionID string, from, to models.Status, at time.Time) (bool, error)
	MarkTransactionEnqueued(ctx context.Context, transactionID string, at time.Time) error
	ListOrphanedTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
}

type Enqueuer interface {
	EnqueueDelayed(ctx context.Context, task models.FinalizeTask, delay time.Duration) error
}

// DelayedTaskQueue delivers each enqueued task at least once, no earlier than its delay.
type DelayedTaskQueue interface {
	Enqueuer
	Subscribe(ctx context.Context, handler models.TaskHandler) (cancel func(), err error)
}

// EventRecorder receives status observations for the audit log. Failures never affect the pipeline.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev models.TransactionEvent) error
}

type Options struct {
	// FinalizeDelay is the minimum time between creation and finalization.
	FinalizeDelay time.Duration
	// PublishTimeout bounds each enqueue call.
	PublishTimeout time.Duration
	Events         EventRecorder
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FinalizeDelay < 0 {
		o.FinalizeDelay = 0
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func recordEvent(ctx context.Context, events EventRecorder, log *logrus.Entry, tx *models.Transaction, at time.Time) {
	if events == nil {
		return
	}
	err := events.RecordEvent(ctx, models.TransactionEvent{
		TransactionID: tx.TransactionID,
		Status:        string(tx.Status),
		Amount:        tx.Amount.StringFixed(models.AmountScale),
		Currency:      tx.Currency,
		OccurredAt:    at,
	})
	if err != nil {
		log.Warnf("Failed to record transaction event: %v", err)
	}
}
