package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/db/memory"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var t0 = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scheduled struct {
	task  models.FinalizeTask
	delay time.Duration
}

// fakeQueue records enqueued tasks and keeps the subscribed handler.
type fakeQueue struct {
	mu       sync.Mutex
	tasks    []scheduled
	err      error
	block    bool
	handler  models.TaskHandler
	canceled bool
}

func (q *fakeQueue) EnqueueDelayed(ctx context.Context, task models.FinalizeTask, delay time.Duration) error {
	if q.block {
		<-ctx.Done()
		return ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, scheduled{task: task, delay: delay})
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, handler models.TaskHandler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.canceled = true
	}, nil
}

func (q *fakeQueue) Scheduled() []scheduled {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]scheduled(nil), q.tasks...)
}

// failingStore wraps the memory store and injects errors into selected operations.
type failingStore struct {
	*memory.Store
	getErr    error
	createErr error
	updateErr error
}

func (s *failingStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.Store.GetTransaction(ctx, id)
}

func (s *failingStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Store.CreateTransaction(ctx, tx)
}

func (s *failingStore) UpdateTransactionStatus(ctx context.Context, id string, from, to models.Status, at time.Time) (bool, error) {
	if s.updateErr != nil {
		return false, s.updateErr
	}
	return s.Store.UpdateTransactionStatus(ctx, id, from, to, at)
}

type eventLog struct {
	mu     sync.Mutex
	events []models.TransactionEvent
	err    error
}

func (e *eventLog) RecordEvent(ctx context.Context, ev models.TransactionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

var errStoreDown = errors.New("store unavailable")

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func payload(id string) models.Payload {
	return models.Payload{
		TransactionID:      id,
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             decimal.RequireFromString("100.50"),
		Currency:           "USD",
	}
}

type harness struct {
	store     *memory.Store
	queue     *fakeQueue
	clock     *fakeClock
	events    *eventLog
	ingestor  *Ingestor
	finalizer *Finalizer
	query     *Query
}

func newHarness() *harness {
	h := &harness{
		store:  memory.NewStore(),
		queue:  &fakeQueue{},
		clock:  newClock(),
		events: &eventLog{},
	}
	opts := Options{
		FinalizeDelay: DefaultFinalizeDelay,
		Events:        h.events,
		Now:           h.clock.Now,
	}
	log := quietLogger()
	h.ingestor = NewIngestor(h.store, h.queue, log, opts)
	h.finalizer = NewFinalizer(h.store, log, opts)
	h.query = NewQuery(h.store, log)
	return h
}
