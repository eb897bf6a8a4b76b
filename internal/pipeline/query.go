package pipeline

import (
	"context"
	"fmt"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Query gives read-only access to stored transactions.
type Query struct {
	store TransactionStore
	log   *logrus.Logger
}

func NewQuery(store TransactionStore, log *logrus.Logger) *Query {
	return &Query{
		store: store,
		log:   log,
	}
}

// Get returns models.ErrNotFound when the id was never ingested.
func (q *Query) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	return q.store.GetTransaction(ctx, transactionID)
}

// List returns transactions matching filter, newest first. A zero limit means DefaultListLimit
// and limits are capped at MaxListLimit.
func (q *Query) List(ctx context.Context, filter models.Filter) ([]models.Transaction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidPayload, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}

	txs, err := q.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	q.log.WithFields(logrus.Fields{
		"status": filter.Status,
		"count":  len(txs),
	}).Debug("Listed transactions")

	return txs, nil
}
