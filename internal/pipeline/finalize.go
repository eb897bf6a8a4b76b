package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Finalizer applies the PROCESSING -> PROCESSED transition for delivered tasks.
type Finalizer struct {
	store TransactionStore
	log   *logrus.Logger
	opts  Options
}

func NewFinalizer(store TransactionStore, log *logrus.Logger, opts Options) *Finalizer {
	return &Finalizer{
		store: store,
		log:   log,
		opts:  opts.withDefaults(),
	}
}

// Handle finalizes the transaction named by task. Missing and already processed transactions are
// dropped without error. A task delivered before the finalization delay has elapsed yields a
// *models.RetryAfterError; store failures are returned so the queue retries the task.
func (f *Finalizer) Handle(ctx context.Context, task models.FinalizeTask) error {
	log := f.log.WithField("transaction_id", task.TransactionID)
	log.Info("Finalization started")

	tx, err := f.store.GetTransaction(ctx, task.TransactionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Transaction not found, dropping task")
			metrics.Finalized.WithLabelValues("missing").Inc()
			return nil
		}
		metrics.Finalized.WithLabelValues("failed").Inc()
		return fmt.Errorf("get transaction %s: %w", task.TransactionID, err)
	}

	if tx.Status == models.StatusProcessed {
		log.Info("Transaction already processed, dropping task")
		metrics.Finalized.WithLabelValues("already_processed").Inc()
		return nil
	}

	now := f.opts.Now()
	due := tx.CreatedAt.Add(f.opts.FinalizeDelay)
	if now.Before(due) {
		metrics.Finalized.WithLabelValues("early").Inc()
		return &models.RetryAfterError{After: due.Sub(now)}
	}

	changed, err := f.store.UpdateTransactionStatus(ctx, tx.TransactionID, models.StatusProcessing, models.StatusProcessed, now)
	if err != nil {
		metrics.Finalized.WithLabelValues("failed").Inc()
		return fmt.Errorf("finalize transaction %s: %w", task.TransactionID, err)
	}
	if !changed {
		log.Info("Transaction finalized concurrently, dropping task")
		metrics.Finalized.WithLabelValues("already_processed").Inc()
		return nil
	}

	tx.Status = models.StatusProcessed
	tx.ProcessedAt = &now
	tx.UpdatedAt = now

	log.WithField("processed_at", now).Info("Transaction marked as PROCESSED")
	metrics.Finalized.WithLabelValues("finalized").Inc()
	metrics.FinalizeLag.Observe(now.Sub(tx.CreatedAt).Seconds())
	recordEvent(ctx, f.opts.Events, log, tx, now)

	return nil
}

// Run consumes tasks from queue until ctx is done.
func (f *Finalizer) Run(ctx context.Context, queue DelayedTaskQueue) error {
	cancel, err := queue.Subscribe(ctx, f.Handle)
	if err != nil {
		return fmt.Errorf("subscribe to finalization tasks: %w", err)
	}

	<-ctx.Done()
	f.log.Info("Stopping finalization worker")
	cancel()

	return nil
}
