package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Spok95/scm-ledger/internal/domain/inventory"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveApply(inventory.TypeIssue, "applied")
	m.ObserveApply(inventory.TypeIssue, "applied")
	m.ObserveApply(inventory.TypeIssue, "insufficient")
	m.ObserveLockWait(3 * time.Millisecond)
	m.LowStockAlert()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues("issue", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("issue", "insufficient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lowStock))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}
