// Package memory is an in-process transaction store with the same semantics as the SQL store.
// It backs tests and local experiments; it is not durable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
)

type Store struct {
	mu   sync.RWMutex
	rows map[string]models.Transaction
	seq  map[string]int

	next int
	// Err, when set, is returned by every operation.
	Err error
}

func NewStore() *Store {
	return &Store{
		rows: make(map[string]models.Transaction),
		seq:  make(map[string]int),
	}
}

func (s *Store) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.rows[tx.TransactionID]; ok {
		return models.ErrDuplicate
	}

	s.rows[tx.TransactionID] = clone(*tx)
	s.next++
	s.seq[tx.TransactionID] = s.next
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}
	row, ok := s.rows[transactionID]
	if !ok {
		return nil, models.ErrNotFound
	}

	tx := clone(row)
	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter models.Filter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]models.Transaction, 0)
	for _, row := range s.rows {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if !filter.CreatedAfter.IsZero() && row.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && row.CreatedAt.After(filter.CreatedBefore) {
			continue
		}
		out = append(out, clone(row))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].TransactionID] > s.seq[out[j].TransactionID]
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID string, from, to models.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return false, s.Err
	}
	row, ok := s.rows[transactionID]
	if !ok || row.Status != from {
		return false, nil
	}

	row.Status = to
	row.UpdatedAt = at
	if to == models.StatusProcessed {
		row.ProcessedAt = &at
	}
	s.rows[transactionID] = row
	return true, nil
}

func (s *Store) MarkTransactionEnqueued(ctx context.Context, transactionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	row, ok := s.rows[transactionID]
	if !ok {
		return nil
	}
	row.LastEnqueuedAt = &at
	s.rows[transactionID] = row
	return nil
}

func (s *Store) ListOrphanedTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}

	out := make([]models.Transaction, 0)
	for _, row := range s.rows {
		if row.Status != models.StatusProcessing {
			continue
		}
		if row.LastEnqueuedAt == nil && row.CreatedAt.Before(createdBefore) {
			out = append(out, clone(row))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func clone(tx models.Transaction) models.Transaction {
	if tx.ProcessedAt != nil {
		t := *tx.ProcessedAt
		tx.ProcessedAt = &t
	}
	if tx.LastEnqueuedAt != nil {
		t := *tx.LastEnqueuedAt
		tx.LastEnqueuedAt = &t
	}
	return tx
}
