package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

func (s Status) Valid() bool {
	return s == StatusProcessing || s == StatusProcessed
}

// Transaction is the stored state of one webhook notification.
type Transaction struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	ProcessedAt        *time.Time      `json:"processed_at"`
	LastEnqueuedAt     *time.Time      `json:"-"`
}

// Payload carries the five fields accepted from the webhook caller.
type Payload struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// Filter narrows a listing. Bounds on CreatedAt are inclusive; zero values are ignored.
type Filter struct {
	Status        Status
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// FinalizeTask is the body published to the delayed queue.
type FinalizeTask struct {
	TransactionID string `json:"transactionId"`
}

// TransactionEvent is one status observation appended to the event log.
type TransactionEvent struct {
	TransactionID string    `ch:"transaction_id"`
	Status        string    `ch:"status"`
	Amount        string    `ch:"amount"`
	Currency      string    `ch:"currency"`
	OccurredAt    time.Time `ch:"occurred_at"`
}

// TaskHandler processes one delivered finalization task.
type TaskHandler func(ctx context.Context, task FinalizeTask) error
