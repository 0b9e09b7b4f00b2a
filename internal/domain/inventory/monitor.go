package inventory

import (
	"context"
	"log/slog"
)

// AlertSink — получатель алертов о низком остатке (уведомления, очередь).
type AlertSink interface {
	LowStock(ctx context.Context, a LowStockAlert) error
}

// Monitor следит за порогами. Срабатывает по фронту: только при переходе
// из «>= порога» в «< порога». Состояние не хранит — предыдущий остаток
// приходит в самом событии, а события по позиции упорядочены движком.
type Monitor struct {
	sink  AlertSink
	log   *slog.Logger
	onHit func()
}

func NewMonitor(sink AlertSink, log *slog.Logger) *Monitor {
	return &Monitor{sink: sink, log: log}
}

// OnAlert — хук для метрик.
func (m *Monitor) OnAlert(fn func()) { m.onHit = fn }

// Crossed — пересёк ли остаток порог вниз этим движением.
func Crossed(ev StockChanged) bool {
	if !ev.MonitorStockLevel || !ev.MinQuantity.Valid {
		return false
	}
	min := ev.MinQuantity.Decimal
	return ev.Quantity.LessThan(min) && ev.Previous.GreaterThanOrEqual(min)
}

func (m *Monitor) OnStockChanged(ctx context.Context, ev StockChanged) error {
	if !Crossed(ev) {
		return nil
	}
	a := LowStockAlert{
		Key:           ev.Key,
		TransactionID: ev.TransactionID,
		Quantity:      ev.Quantity,
		Threshold:     ev.MinQuantity.Decimal,
		OccurredAt:    ev.OccurredAt,
	}
	m.log.Warn("low stock",
		"key", ev.Key.String(), "qty", a.Quantity.String(), "threshold", a.Threshold.String(), "tx", a.TransactionID)
	if m.onHit != nil {
		m.onHit()
	}
	if m.sink == nil {
		return nil
	}
	return m.sink.LowStock(ctx, a)
}
