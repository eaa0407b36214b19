package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLedgerMetrics(reg)

	metrics.ObserveOperation(LedgerOpPayout, true)
	metrics.ObserveOperation(LedgerOpPayout, true)
	metrics.ObserveOperation(LedgerOpCharge, false)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	got, err := fetchCounterValue(mfs, "ledger_operations_total", "operation", LedgerOpPayout)
	if err != nil {
		t.Fatalf("fetch payout counter: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected payout success=2, got %f", got)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var metrics *LedgerMetrics
	metrics.ObserveOperation(LedgerOpRefund, true)

	empty := NewLedgerMetrics(nil)
	empty.ObserveOperation(LedgerOpRefund, false)
}
