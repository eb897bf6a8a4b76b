package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores and queries when no transaction carries the requested id.
	ErrNotFound = errors.New("transaction not found")

	// ErrDuplicate is returned on insert when the transaction id already exists.
	ErrDuplicate = errors.New("transaction already exists")

	ErrInvalidPayload = errors.New("invalid transaction payload")
)

// RetryAfterError asks the queue to deliver the task again after a delay, without counting a failed attempt.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("task not due yet, retry after %s", e.After)
}
