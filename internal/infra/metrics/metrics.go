package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

type Metrics struct {
	transactions *prometheus.CounterVec
	lockWait     prometheus.Histogram
	lowStock     prometheus.Counter
}

// New регистрирует метрики в reg (prometheus.DefaultRegisterer для /metrics).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Stock transactions by type and outcome.",
		}, []string{"type", "result"}),
		lockWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_seconds",
			Help:    "Time spent waiting for stock position locks.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 3},
		}),
		lowStock: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_low_stock_alerts_total",
			Help: "Low stock alerts raised.",
		}),
	}
}

func (m *Metrics) ObserveApply(t inventory.Type, result string) {
	m.transactions.WithLabelValues(string(t), result).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) { m.lockWait.Observe(d.Seconds()) }

func (m *Metrics) LowStockAlert() { m.lowStock.Inc() }
