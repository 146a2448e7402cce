package store

import (
	"errors"
	"fmt"
	"strconv"

	"caixa/backend/internal/money"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrPaymentInsufficient = errors.New("payment insufficient")
	ErrAlreadyOpen         = errors.New("cash register already open")
	ErrNotOpen             = errors.New("cash register not open")
	ErrConflict            = errors.New("conflict")
	// ErrRetryable marks infrastructure failures that left no partial writes.
	ErrRetryable = errors.New("temporarily unavailable, retry")
)

// ShortageError reports a balance check that failed, with the numbers the
// caller needs to correct the request. It unwraps to its Kind sentinel.
type ShortageError struct {
	Kind      error
	Entity    string
	ID        string
	Requested int64
	Available int64
	Money     bool
}

func (e *ShortageError) Error() string {
	requested, available := strconv.FormatInt(e.Requested, 10), strconv.FormatInt(e.Available, 10)
	if e.Money {
		requested, available = money.Format(e.Requested), money.Format(e.Available)
	}
	return fmt.Sprintf("%s for %s %s: requested %s, available %s", e.Kind, e.Entity, e.ID, requested, available)
}

func (e *ShortageError) Unwrap() error {
	return e.Kind
}

func StockShortage(productID string, requested int, available int) error {
	return &ShortageError{Kind: ErrInsufficientStock, Entity: "product", ID: productID, Requested: int64(requested), Available: int64(available)}
}

func FundsShortage(registerID string, requested int64, available int64) error {
	return &ShortageError{Kind: ErrInsufficientFunds, Entity: "cash register", ID: registerID, Requested: requested, Available: available, Money: true}
}

func PointsShortage(customerID string, requested int64, available int64) error {
	return &ShortageError{Kind: ErrInsufficientPoints, Entity: "customer", ID: customerID, Requested: requested, Available: available}
}

func CreditShortage(customerID string, requested int64, available int64) error {
	return &ShortageError{Kind: ErrCreditLimitExceeded, Entity: "customer", ID: customerID, Requested: requested, Available: available, Money: true}
}

// Invalid builds a validation error that matches ErrInvalidTransaction.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransaction, fmt.Sprintf(format, args...))
}

func NotFound(entity string, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Wrap prefixes sentinel with a formatted subject, keeping errors.Is working.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
