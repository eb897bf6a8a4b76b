package pipeline

import (
	"context"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

const DefaultSweepBatch = 500

// Sweeper re-enqueues PROCESSING transactions whose finalization task was never confirmed by the broker,
// e.g. the process died between insert and enqueue. Transactions with a confirmed task are left to the queue,
// including ones waiting in the dead-letter queue.
type Sweeper struct {
	store TransactionStore
	queue Enqueuer
	log   *logrus.Logger
	opts  Options
	grace time.Duration
	batch int
}

func NewSweeper(store TransactionStore, queue Enqueuer, log *logrus.Logger, opts Options, grace time.Duration, batch int) *Sweeper {
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{
		store: store,
		queue: queue,
		log:   log,
		opts:  opts.withDefaults(),
		grace: grace,
		batch: batch,
	}
}

// Sweep runs one reconciliation pass and returns the number of re-enqueued transactions.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.opts.Now()
	orphaned, err := s.store.ListOrphanedTransactions(ctx, now.Add(-s.grace), s.batch)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, tx := range orphaned {
		log := s.log.WithField("transaction_id", tx.TransactionID)

		remaining := tx.CreatedAt.Add(s.opts.FinalizeDelay).Sub(now)
		if remaining < 0 {
			remaining = 0
		}

		pubCtx, cancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
		err := s.queue.EnqueueDelayed(pubCtx, models.FinalizeTask{TransactionID: tx.TransactionID}, remaining)
		cancel()
		if err != nil {
			log.Errorf("Failed to re-enqueue finalization: %v", err)
			continue
		}

		if err := s.store.MarkTransactionEnqueued(ctx, tx.TransactionID, s.opts.Now()); err != nil {
			log.Errorf("Failed to mark transaction as enqueued: %v", err)
			continue
		}

		log.WithField("delay", remaining.String()).Info("Re-enqueued orphaned transaction")
		metrics.Reenqueued.Inc()
		count++
	}

	return count, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.WithField("interval", interval.String()).Info("Starting reconciliation sweeper")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Errorf("Error sweeping transactions: %v", err)
				continue
			}
			if n > 0 {
				s.log.WithField("count", n).Info("Sweep completed")
			}
		}
	}
}
