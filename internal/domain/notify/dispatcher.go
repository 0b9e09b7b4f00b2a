package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Spok95/scm-ledger/internal/domain/catalog"
	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

// Channel — один способ доставки (чат, очередь).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

type Describer interface {
	DescribePosition(ctx context.Context, key inventory.Key) (catalog.PositionInfo, error)
}

// Dispatcher раздаёт уведомление во все каналы. Ошибка одного канала
// не мешает остальным; ошибки склеиваются.
type Dispatcher struct {
	channels []Channel
	describe Describer
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger, describe Describer, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, describe: describe, log: log}
}

func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Deliver(ctx, n); err != nil {
			d.log.Warn("notification delivery failed", "channel", ch.Name(), "subject", n.Subject.String(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LowStock — приёмник алертов монитора остатков.
func (d *Dispatcher) LowStock(ctx context.Context, a inventory.LowStockAlert) error {
	var info catalog.PositionInfo
	if d.describe != nil {
		var err error
		info, err = d.describe.DescribePosition(ctx, a.Key)
		if err != nil {
			d.log.Warn("describe position failed", "key", a.Key.String(), "err", err)
			info = catalog.PositionInfo{}
		}
	}
	return d.Send(ctx, LowStock(a, info))
}
