package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransaction = errors.New("inventory: invalid transaction")
	ErrInsufficientStock  = errors.New("inventory: insufficient stock")
	ErrNegativeStock      = errors.New("inventory: negative stock")
	ErrBusy               = errors.New("inventory: position busy, retry later")
	ErrStorageFailure     = errors.New("inventory: storage failure")
	ErrPositionNotFound   = errors.New("inventory: position not found")

	// ErrNothingToAdjust — фактический остаток совпал с учётным.
	ErrNothingToAdjust = fmt.Errorf("%w: counted quantity equals current quantity", ErrInvalidTransaction)
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransaction, fmt.Sprintf(format, args...))
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// StockError — отказ по остатку: либо бизнес-правило (ErrInsufficientStock),
// либо сработавший контроль хранилища (ErrNegativeStock).
type StockError struct {
	Kind      error
	Key       Key
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: %s: available %s, requested %s",
		e.Kind, e.Key, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *StockError) Unwrap() error { return e.Kind }
