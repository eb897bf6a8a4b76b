package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Ingestor records first sightings of a transaction and schedules their finalization.
type Ingestor struct {
	store TransactionStore
	queue Enqueuer
	log   *logrus.Logger
	opts  Options
}

func NewIngestor(store TransactionStore, queue Enqueuer, log *logrus.Logger, opts Options) *Ingestor {
	return &Ingestor{
		store: store,
		queue: queue,
		log:   log,
		opts:  opts.withDefaults(),
	}
}

// Ingest stores p as PROCESSING and enqueues its finalization. Repeated ids are accepted as no-ops.
// Any store or queue failure is returned; the caller should report it as an internal error.
func (i *Ingestor) Ingest(ctx context.Context, p models.Payload) error {
	if err := p.Validate(); err != nil {
		metrics.Ingested.WithLabelValues("invalid").Inc()
		return err
	}

	// A client hanging up must not leave a stored row without its task.
	ctx = context.WithoutCancel(ctx)
	log := i.log.WithField("transaction_id", p.TransactionID)
	log.Info("Webhook received")

	existing, err := i.store.GetTransaction(ctx, p.TransactionID)
	switch {
	case err == nil:
		log.WithField("status", existing.Status).Warn("Transaction already exists, skipping")
		metrics.Ingested.WithLabelValues("duplicate").Inc()
		return nil
	case !errors.Is(err, models.ErrNotFound):
		log.Errorf("Failed to look up transaction: %v", err)
		metrics.Ingested.WithLabelValues("failed").Inc()
		return fmt.Errorf("lookup transaction %s: %w", p.TransactionID, err)
	}

	now := i.opts.Now()
	tx := &models.Transaction{
		TransactionID:      p.TransactionID,
		SourceAccount:      p.SourceAccount,
		DestinationAccount: p.DestinationAccount,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             models.StatusProcessing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := i.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Lost the race against a concurrent delivery of the same webhook.
			log.Warn("Transaction created concurrently, skipping")
			metrics.Ingested.WithLabelValues("duplicate").Inc()
			return nil
		}
		log.Errorf("Failed to create transaction: %v", err)
		metrics.Ingested.WithLabelValues("failed").Inc()
		return fmt.Errorf("create transaction %s: %w", p.TransactionID, err)
	}

	log.WithFields(logrus.Fields{
		"amount":   tx.Amount.StringFixed(models.AmountScale),
		"currency": tx.Currency,
	}).Info("Transaction created")

	pubCtx, cancel := context.WithTimeout(ctx, i.opts.PublishTimeout)
	defer cancel()

	task := models.FinalizeTask{TransactionID: tx.TransactionID}
	if err := i.queue.EnqueueDelayed(pubCtx, task, i.opts.FinalizeDelay); err != nil {
		log.Errorf("Failed to enqueue finalization: %v", err)
		metrics.Ingested.WithLabelValues("failed").Inc()
		return fmt.Errorf("enqueue finalization of %s: %w", p.TransactionID, err)
	}

	if err := i.store.MarkTransactionEnqueued(ctx, tx.TransactionID, i.opts.Now()); err != nil {
		// The task is with the broker; the sweeper may enqueue a harmless duplicate.
		log.Warnf("Failed to mark transaction as enqueued: %v", err)
	}

	log.WithField("delay", i.opts.FinalizeDelay.String()).Info("Finalization scheduled")
	metrics.Ingested.WithLabelValues("created").Inc()
	recordEvent(ctx, i.opts.Events, log, tx, now)

	return nil
}
