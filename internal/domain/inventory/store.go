package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuantityStore — текущие остатки. ApplyDelta — последняя линия защиты от минуса:
// отказ с ErrNegativeStock, даже если вызывающий пропустил проверку.
type QuantityStore interface {
	// Get блокирует позицию до конца транзакции; 0, если позиции ещё нет.
	Get(ctx context.Context, key Key) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, key Key, delta decimal.Decimal) (Position, error)
}

// TransactionLog — журнал только на дозапись. Append проставляет ID и CreatedAt.
type TransactionLog interface {
	Append(ctx context.Context, rec *Record) error
}

// StoreTx — одна атомарная единица: либо и остатки, и запись журнала, либо ничего.
type StoreTx interface {
	QuantityStore
	TransactionLog
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Store interface {
	Begin(ctx context.Context) (StoreTx, error)

	Position(ctx context.Context, key Key) (Position, bool, error)
	Positions(ctx context.Context, f PositionFilter) ([]Position, error)
	// History — движения по позиции, от старых к новым.
	History(ctx context.Context, key Key) ([]Record, error)
	Records(ctx context.Context, f RecordFilter) ([]Record, error)
	SetThreshold(ctx context.Context, key Key, min decimal.NullDecimal, monitor bool) (Position, error)
}
