package models

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

const (
	MaxFieldLength = 255
	AmountScale    = 2
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// MaxAmount is the largest value the decimal(12,2) amount column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Validate repeats the shape checks of the HTTP layer for callers that reach the core directly.
func (p Payload) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"transaction_id", p.TransactionID},
		{"source_account", p.SourceAccount},
		{"destination_account", p.DestinationAccount},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidPayload, f.name)
		}
		if len(f.value) > MaxFieldLength {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidPayload, f.name, MaxFieldLength)
		}
	}

	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidPayload)
	}
	if p.Amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", ErrInvalidPayload, MaxAmount.StringFixed(AmountScale))
	}
	if !p.Amount.Equal(p.Amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", ErrInvalidPayload, AmountScale)
	}

	if !currencyPattern.MatchString(p.Currency) {
		return fmt.Errorf("%w: currency must be a 3-letter uppercase code", ErrInvalidPayload)
	}

	return nil
}
