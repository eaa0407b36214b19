package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ledger operation labels.
const (
	LedgerOpPayout = "payout"
	LedgerOpCharge = "charge"
	LedgerOpRefund = "refund"
)

// LedgerMetrics counts wallet ledger operations by outcome.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Wallet ledger operations by type and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(operations)
	return &LedgerMetrics{operations: operations}
}

// ObserveOperation increments the counter for the operation's outcome.
func (l *LedgerMetrics) ObserveOperation(operation string, ok bool) {
	if l == nil || l.operations == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	l.operations.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}
